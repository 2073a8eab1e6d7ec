package secrets

import (
	"fmt"
	"sort"

	"conveyor/pkg/api"
)

// MissingSecretError is returned when a stage declares a secret absent from
// the supplied environment. The stage fails before any external tool runs.
type MissingSecretError struct {
	StageID string
	Name    string
}

func (e MissingSecretError) Error() string {
	return fmt.Sprintf("stage %s requires secret %s which is not present in the environment", e.StageID, e.Name)
}

// Bindings holds the secrets resolved for exactly one stage invocation.
// Values never travel through stage outputs, events, logs or the artifact
// store; the zero value carries nothing.
type Bindings struct {
	values map[string]string
}

// Resolve validates and scopes the environment secrets to the given stage.
// Resolution is strict: every declared name must be present, resolution fails
// closed on the first missing one.
func Resolve(spec api.StageSpec, env map[string]string) (Bindings, error) {
	values := make(map[string]string, len(spec.Secrets))
	for _, name := range spec.Secrets {
		v, exists := env[name]
		if !exists {
			return Bindings{}, MissingSecretError{StageID: spec.ID, Name: name}
		}
		values[name] = v
	}
	return Bindings{values: values}, nil
}

// Value returns the secret with the given name.
func (b Bindings) Value(name string) (string, bool) {
	v, exists := b.values[name]
	return v, exists
}

// Names returns the bound secret names, sorted.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b.values))
	for n := range b.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AsEnv returns the bindings as NAME=value pairs for handing to an external
// tool process.
func (b Bindings) AsEnv() []string {
	env := make([]string, 0, len(b.values))
	for _, n := range b.Names() {
		env = append(env, n+"="+b.values[n])
	}
	return env
}

// Len returns the number of bound secrets.
func (b Bindings) Len() int {
	return len(b.values)
}

// String keeps secret values out of accidental formatting.
func (b Bindings) String() string {
	return fmt.Sprintf("secrets%v", b.Names())
}
