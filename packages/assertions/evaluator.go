package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/xmlhttp/packages/capture"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type checkFunc func(e *Evaluator, actual, expected any) (bool, string)

var checks map[Operator]checkFunc

// negations are checked through their positive form.
var negations = map[Operator]struct {
	base Operator
	msg  string
}{
	OpNotEquals:   {OpEquals, "expected not to equal %v"},
	OpNotContains: {OpContains, "expected not to contain %v"},
	OpNotIncludes: {OpIncludes, "expected not to include %v"},
	OpNotIn:       {OpIn, "expected not to be in %v"},
	OpNotExists:   {OpExists, "expected not to exist"},
}

func init() {
	checks = map[Operator]checkFunc{
		OpEquals:         (*Evaluator).equals,
		OpGreaterThan:    numeric(">"),
		OpGreaterOrEqual: numeric(">="),
		OpLessThan:       numeric("<"),
		OpLessOrEqual:    numeric("<="),
		OpContains:       stringCheck(strings.Contains, "contain"),
		OpStartsWith:     stringCheck(strings.HasPrefix, "start with"),
		OpEndsWith:       stringCheck(strings.HasSuffix, "end with"),
		OpMatches:        (*Evaluator).matches,
		OpExists:         (*Evaluator).exists,
		OpLength:         (*Evaluator).length,
		OpIncludes:       (*Evaluator).includes,
		OpIn:             (*Evaluator).in,
		OpType:           (*Evaluator).typeCheck,
		OpSchema:         (*Evaluator).schemaFile,
		OpEach:           (*Evaluator).each,
	}
}

type Evaluator struct {
	src      capture.Source
	body     []byte
	bodyJSON gjson.Result
	baseDir  string // schema files are resolved against it
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir resolves relative schema paths against dir and refuses
// paths outside it.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(src capture.Source, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		src:  src,
		body: src.ResponseBytes(),
	}
	if gjson.ValidBytes(e.body) {
		e.bodyJSON = gjson.ParseBytes(e.body)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Evaluate(a *Assertion) *Result {
	result := &Result{
		Subject:  a.Subject,
		Operator: a.Operator.String(),
		Expected: a.Expected,
	}

	actual, err := e.actual(a.Subject)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	result.Passed, result.Message = e.apply(a.Operator, actual, a.Expected)

	if a.Operator == OpLength {
		result.Actual = computeLength(actual)
	}
	return result
}

// ExpectStatus checks the response status code.
func (e *Evaluator) ExpectStatus(code int) *Result {
	return e.Evaluate(&Assertion{Subject: "status", Operator: OpEquals, Expected: code})
}

// ValidateSchema validates the whole body against a JSON schema document.
func (e *Evaluator) ValidateSchema(schema []byte) *Result {
	result := &Result{Subject: "body", Operator: OpSchema.String()}
	if !e.bodyJSON.Exists() {
		result.Message = "response body is not JSON"
		return result
	}
	result.Actual = e.bodyJSON.Value()
	result.Passed, result.Message = validateSchema(schema, e.body)
	return result
}

func (e *Evaluator) apply(op Operator, actual, expected any) (bool, string) {
	if neg, ok := negations[op]; ok {
		if passed, _ := e.apply(neg.base, actual, expected); passed {
			if unary[op] {
				return false, neg.msg
			}
			return false, fmt.Sprintf(neg.msg, expected)
		}
		return true, ""
	}

	check, ok := checks[op]
	if !ok {
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
	return check(e, actual, expected)
}

func (e *Evaluator) actual(subject string) (any, error) {
	switch {
	case subject == "status":
		return e.src.Status(), nil
	case subject == "url":
		return e.src.ResponseURL(), nil
	case strings.HasPrefix(strings.ToLower(subject), "header "):
		name := strings.TrimSpace(subject[len("header "):])
		if v := e.src.GetResponseHeader(name); v != "" {
			return v, nil
		}
		return nil, nil
	case subject == "body" || strings.HasPrefix(subject, "body.") || strings.HasPrefix(subject, "body["):
		return e.bodyValue(strings.TrimPrefix(subject, "body"))
	default:
		return nil, fmt.Errorf("unknown subject %q", subject)
	}
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// gjsonPath turns "items[0].tags[1]" into "items.0.tags.1".
func gjsonPath(path string) string {
	path = bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

func (e *Evaluator) bodyValue(path string) (any, error) {
	path = gjsonPath(path)
	if !e.bodyJSON.Exists() {
		if path != "" {
			return nil, fmt.Errorf("response body is not JSON")
		}
		return string(e.body), nil
	}
	if path == "" {
		return e.bodyJSON.Value(), nil
	}
	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	a, aOk := toFloat64(actual)
	b, bOk := toFloat64(expected)
	if aOk && bOk && a == b {
		return true, ""
	}
	if fmt.Sprint(actual) == fmt.Sprint(expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func numeric(op string) checkFunc {
	return func(_ *Evaluator, actual, expected any) (bool, string) {
		a, aOk := toFloat64(actual)
		b, bOk := toFloat64(expected)
		if !aOk || !bOk {
			return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
		}

		var passed bool
		switch op {
		case ">":
			passed = a > b
		case ">=":
			passed = a >= b
		case "<":
			passed = a < b
		case "<=":
			passed = a <= b
		}
		if passed {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
	}
}

func stringCheck(fn func(s, sub string) bool, verb string) checkFunc {
	return func(_ *Evaluator, actual, expected any) (bool, string) {
		if fn(fmt.Sprint(actual), fmt.Sprint(expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected '%v' to %s '%v'", actual, verb, expected)
	}
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	pattern := strings.TrimSuffix(strings.TrimPrefix(fmt.Sprint(expected), "/"), "/")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}
	if re.MatchString(fmt.Sprint(actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func (e *Evaluator) exists(actual, _ any) (bool, string) {
	if actual == nil {
		return false, "expected to exist"
	}
	return true, ""
}

// computeLength returns the length of a value, or -1 if it has none.
func computeLength(actual any) int {
	if actual == nil {
		return -1
	}
	rv := reflect.ValueOf(actual)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return -1
	}
}

func (e *Evaluator) length(actual, expected any) (bool, string) {
	want, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}
	got := computeLength(actual)
	if got == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}
	if got == want {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", want, got)
}

func (e *Evaluator) includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}
	for _, item := range arr {
		if passed, _ := e.equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func (e *Evaluator) in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}
	for _, item := range arr {
		if passed, _ := e.equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

func (e *Evaluator) typeCheck(actual, expected any) (bool, string) {
	want := fmt.Sprint(expected)
	if got := jsonType(actual); got != want {
		return false, fmt.Sprintf("expected type %s, got %s", want, got)
	}
	return true, ""
}

// each applies expected to every element. expected is either a plain value
// compared for equality or {"operator": ..., "value": ...}.
func (e *Evaluator) each(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'each' operator, got %T", actual)
	}

	op, value := OpEquals, expected
	if m, isMap := expected.(map[string]any); isMap {
		rawOp, hasOp := m["operator"]
		rawVal, hasVal := m["value"]
		if hasOp && hasVal {
			parsed, known := parseOperator(fmt.Sprint(rawOp))
			if !known || parsed == OpEach || parsed == OpSchema {
				return false, fmt.Sprintf("unknown operator in each: %v", rawOp)
			}
			op, value = parsed, rawVal
		}
	}

	for i, item := range arr {
		if passed, msg := e.apply(op, item, value); !passed {
			return false, fmt.Sprintf("item[%d]: %s", i, msg)
		}
	}
	return true, ""
}

// validatePathWithinBase rejects paths that resolve outside baseDir.
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}

func (e *Evaluator) schemaFile(actual, expected any) (bool, string) {
	path := fmt.Sprint(expected)
	if !filepath.IsAbs(path) && e.baseDir != "" {
		path = filepath.Join(e.baseDir, path)
	}
	if err := validatePathWithinBase(path, e.baseDir); err != nil {
		return false, err.Error()
	}

	schema, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Sprintf("failed to read schema file: %v", err)
	}

	doc, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}
	return validateSchema(schema, doc)
}

func validateSchema(schema, doc []byte) (bool, string) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return false, "schema validation failed: " + strings.Join(msgs, "; ")
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	if f, ok := toFloat64(v); ok {
		return int(f), true
	}
	return 0, false
}

// EvaluateAll runs every assertion against src.
func EvaluateAll(src capture.Source, assertions []*Assertion, opts ...EvaluatorOption) []*Result {
	e := NewEvaluator(src, opts...)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = e.Evaluate(a)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []*Result) []*Result {
	var failed []*Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
