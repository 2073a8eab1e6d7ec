package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindAll(t *testing.T) {
	input := map[string]interface{}{
		"str":  "${args.version}",
		"num":  1,
		"bool": true,
		"obj": map[string]interface{}{
			"path": "releases/${args.version}/${build.checksum}",
		},
		"arr": []interface{}{"plain", "${build.checksum}"},
	}
	exprs := New(input).FindAll()
	assert.Equal(t, 4, len(exprs))
	assert.Contains(t, exprs, Expression{Text: "args.version"})
	assert.Contains(t, exprs, Expression{Text: "build.checksum"})
}

func TestFindAllNoExpressions(t *testing.T) {
	assert.Empty(t, New(map[string]interface{}{"key": "plain"}).FindAll())
	assert.Empty(t, New(nil).FindAll())
}

func TestExpressionString(t *testing.T) {
	assert.Equal(t, "${args.version}", Expression{Text: "args.version"}.String())
}
