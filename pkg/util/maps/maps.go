package maps

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Get returns the value at the given dotted path, or nil.
func Get(m interface{}, key string) interface{} {
	var obj interface{} = m
	var val interface{} = nil

	for _, p := range strings.Split(key, ".") {
		v, ok := obj.(map[string]interface{})
		if !ok {
			return nil
		}
		obj = v[p]
		val = obj
	}
	return val
}

// GetString returns the string value at the given dotted path.
func GetString(m interface{}, key string) (string, bool) {
	s, ok := Get(m, key).(string)
	return s, ok
}

// Decode takes an input structure and uses reflection to translate it to the
// output structure. out must be a pointer to a map or struct.
func Decode(in, out interface{}) error {
	return mapstructure.Decode(in, out)
}
