package assertions

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Operator compares an actual value with an expected one.
type Operator string

const (
	OpEquals         Operator = "=="
	OpNotEquals      Operator = "!="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "contains"
	OpNotContains    Operator = "!contains"
	OpStartsWith     Operator = "startsWith"
	OpEndsWith       Operator = "endsWith"
	OpMatches        Operator = "matches"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "!exists"
	OpLength         Operator = "length"
	OpIncludes       Operator = "includes"
	OpNotIncludes    Operator = "!includes"
	OpIn             Operator = "in"
	OpNotIn          Operator = "!in"
	OpType           Operator = "type"
	OpSchema         Operator = "schema"
	OpEach           Operator = "each"
)

// operatorAliases maps the word spellings accepted on the command line.
var operatorAliases = map[string]Operator{
	"equals":      OpEquals,
	"notEquals":   OpNotEquals,
	"notContains": OpNotContains,
	"notExists":   OpNotExists,
	"notIncludes": OpNotIncludes,
	"notIn":       OpNotIn,
}

// unary operators take no expected value.
var unary = map[Operator]bool{
	OpExists:    true,
	OpNotExists: true,
}

func (o Operator) String() string {
	return string(o)
}

func parseOperator(s string) (Operator, bool) {
	if op, ok := operatorAliases[s]; ok {
		return op, true
	}
	op := Operator(s)
	if _, ok := checks[op]; ok {
		return op, true
	}
	if _, ok := negations[op]; ok {
		return op, true
	}
	return "", false
}

// Assertion is one expectation on a finished request.
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

func (a *Assertion) String() string {
	if unary[a.Operator] {
		return fmt.Sprintf("%s %s", a.Subject, a.Operator)
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

// Parse reads an expectation such as "status == 200" or
// "header content-type contains json".
func Parse(expr string) (*Assertion, error) {
	fields := strings.Fields(expr)
	if len(fields) < 2 {
		return nil, fmt.Errorf("assertion %q: want <subject> <operator> [expected]", expr)
	}

	subject := fields[0]
	rest := fields[1:]
	if strings.EqualFold(subject, "header") {
		if len(rest) < 2 {
			return nil, fmt.Errorf("assertion %q: header name and operator required", expr)
		}
		subject = "header " + rest[0]
		rest = rest[1:]
	}

	op, ok := parseOperator(rest[0])
	if !ok {
		return nil, fmt.Errorf("assertion %q: unknown operator %q", expr, rest[0])
	}

	a := &Assertion{Subject: subject, Operator: op}
	if unary[op] {
		if len(rest) > 1 {
			return nil, fmt.Errorf("assertion %q: %s takes no value", expr, op)
		}
		return a, nil
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("assertion %q: missing expected value", expr)
	}

	a.Expected = parseLiteral(strings.Join(rest[1:], " "))
	return a, nil
}

// ParseAll parses every expression, stopping at the first error.
func ParseAll(exprs []string) ([]*Assertion, error) {
	out := make([]*Assertion, 0, len(exprs))
	for _, expr := range exprs {
		a, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseLiteral(s string) any {
	if gjson.Valid(s) {
		return gjson.Parse(s).Value()
	}
	return strings.Trim(s, `"'`)
}
