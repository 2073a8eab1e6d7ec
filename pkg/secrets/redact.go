package secrets

import (
	"io"
	"strings"
)

const mask = "*****"

// Redact replaces every bound secret value occurring in s with a mask.
func (b Bindings) Redact(s string) string {
	for _, v := range b.values {
		if v == "" {
			continue
		}
		s = strings.ReplaceAll(s, v, mask)
	}
	return s
}

// RedactingWriter wraps w so that secret values are masked before writing.
// Used for external tool output, which may echo credentials.
func (b Bindings) RedactingWriter(w io.Writer) io.Writer {
	return redactingWriter{b: b, w: w}
}

type redactingWriter struct {
	b Bindings
	w io.Writer
}

// Write masks per chunk; a secret split across two writes is not detected.
// Tool output is line buffered in practice, which is good enough here.
func (rw redactingWriter) Write(p []byte) (int, error) {
	if _, err := rw.w.Write([]byte(rw.b.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
