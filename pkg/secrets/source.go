package secrets

import (
	"encoding/json"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// FromFile loads an environment secret map from a file. The file is either a
// flat JSON object or NAME=value lines (blank lines and # comments ignored).
// This is the single boundary where secret material enters the process;
// stage logic only ever sees Bindings.
func FromFile(path string) (map[string]string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read secrets file %s", path)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		env := make(map[string]string)
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, errors.Wrapf(err, "cannot decode secrets file %s as JSON object", path)
		}
		return env, nil
	}

	env := make(map[string]string)
	for i, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			return nil, errors.Errorf("secrets file %s: line %d is not NAME=value", path, i+1)
		}
		env[line[:idx]] = line[idx+1:]
	}
	return env, nil
}

// FromEnviron imports the named variables from the given process environment
// (as returned by os.Environ). Absent names are left out; Resolve reports
// them per stage.
func FromEnviron(names []string, environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.Index(kv, "="); idx > 0 {
			values[kv[:idx]] = kv[idx+1:]
		}
	}
	env := make(map[string]string, len(names))
	for _, n := range names {
		if v, exists := values[n]; exists {
			env[n] = v
		}
	}
	return env
}
