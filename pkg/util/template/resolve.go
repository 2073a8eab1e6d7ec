package template

import (
	"fmt"

	"conveyor/pkg/util/maps"

	"github.com/pkg/errors"
)

// ResolveFunc specifies how an expression should be resolved.
type ResolveFunc func(expr Expression) (interface{}, error)

// ResolveWithMap returns a ResolveFunc that performs resolution from a map,
// expression texts being dotted paths into the map.
func ResolveWithMap(m map[string]interface{}) ResolveFunc {
	return func(expr Expression) (interface{}, error) {
		res := maps.Get(m, expr.Text)
		if res == nil {
			return nil, errors.Errorf("expression %s resolved to nil", expr)
		}
		return res, nil
	}
}

// Resolve resolves the template using the given resolver.
// A string consisting of a single expression resolves to the referenced value
// with its type preserved; expressions embedded in a larger string are
// replaced by their string representation.
func (tpl *Template) Resolve(resolver ResolveFunc) (interface{}, error) {
	return resolve(tpl.input, resolver)
}

func resolve(input interface{}, resolver ResolveFunc) (interface{}, error) {
	switch v := input.(type) {
	case string:
		return resolveFromString(v, resolver)
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, val := range v {
			newVal, err := resolve(val, resolver)
			if err != nil {
				return nil, err
			}
			m[k] = newVal
		}
		return m, nil
	case []interface{}:
		a := make([]interface{}, len(v))
		for i, val := range v {
			newVal, err := resolve(val, resolver)
			if err != nil {
				return nil, err
			}
			a[i] = newVal
		}
		return a, nil
	}
	return input, nil
}

func resolveFromString(input string, resolver ResolveFunc) (interface{}, error) {
	expressions := findExpressions(input)
	if len(expressions) == 0 {
		return input, nil
	}
	if len(expressions) == 1 && len(input) == len(expressions[0].String()) {
		// The whole string is a single expression, resolve to any type.
		val, err := resolver(expressions[0])
		if err != nil {
			return nil, errors.Wrapf(err, "cannot resolve template expression %s", expressions[0])
		}
		return val, nil
	}
	// Expressions embedded in a larger string, replace in place.
	var rerr error
	out := exprRegexp.ReplaceAllStringFunc(input, func(matched string) string {
		e := asExpression(matched)
		val, err := resolver(e)
		if err != nil {
			rerr = errors.Wrapf(err, "cannot resolve template expression %s", e)
			return ""
		}
		return fmt.Sprintf("%v", val)
	})
	if rerr != nil {
		return nil, rerr
	}
	return out, nil
}
