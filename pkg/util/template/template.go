package template

import (
	"fmt"
	"regexp"
)

// exprRegexp matches ${...} expressions in input structures.
var exprRegexp = regexp.MustCompile(`\$\{[^}]+\}`)

// Template is a representation of a stage input structure that may contain
// ${...} reference expressions.
type Template struct {
	input interface{}
}

// New returns a new Template from the given structure.
func New(in interface{}) *Template {
	return &Template{
		input: in,
	}
}

// Expression is a template element to be resolved.
type Expression struct {
	Text string
}

func (expr Expression) String() string {
	return fmt.Sprintf("${%s}", expr.Text)
}

// FindAll finds all expressions within the template.
func (tpl *Template) FindAll() []Expression {
	var exprs []Expression
	find(&exprs, tpl.input)
	return exprs
}

func find(expressions *[]Expression, in interface{}) {
	switch v := in.(type) {
	case map[string]interface{}:
		for _, val := range v {
			find(expressions, val)
		}
	case []interface{}:
		for _, val := range v {
			find(expressions, val)
		}
	case string:
		*expressions = append(*expressions, findExpressions(v)...)
	}
}

// findExpressions finds the template expressions within a string.
func findExpressions(in string) []Expression {
	var exprs []Expression
	for _, str := range exprRegexp.FindAllString(in, -1) {
		exprs = append(exprs, asExpression(str))
	}
	return exprs
}

// asExpression strips the ${ } delimiters.
func asExpression(in string) Expression {
	return Expression{
		Text: in[2 : len(in)-1],
	}
}
