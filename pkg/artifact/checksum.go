package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

func sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// verifyReader hashes content as it is read and fails the final Read with
// CorruptionError if the stored bytes do not match the recorded checksum.
type verifyReader struct {
	r        io.Reader
	c        io.Closer
	h        hash.Hash
	name     string
	expected string
}

func newVerifyReader(r io.ReadCloser, name, expected string) io.ReadCloser {
	return &verifyReader{
		r:        r,
		c:        r,
		h:        sha256.New(),
		name:     name,
		expected: expected,
	}
}

func (v *verifyReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.h.Write(p[:n])
	}
	if err == io.EOF {
		if actual := hex.EncodeToString(v.h.Sum(nil)); actual != v.expected {
			return n, CorruptionError{Name: v.name, Expected: v.expected, Actual: actual}
		}
	}
	return n, err
}

func (v *verifyReader) Close() error {
	if v.c == nil {
		return nil
	}
	return v.c.Close()
}
