package assertions

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	status int
	header http.Header
	url    string
	body   []byte
}

func (s *stubSource) Status() int                          { return s.status }
func (s *stubSource) GetResponseHeader(name string) string { return s.header.Get(name) }
func (s *stubSource) ResponseURL() string                  { return s.url }
func (s *stubSource) ResponseBytes() []byte                { return s.body }

func createSource(status int, body string, headers map[string]string) *stubSource {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &stubSource{status: status, header: h, url: "http://example.test/", body: []byte(body)}
}

func TestEvaluator_StatusCode(t *testing.T) {
	e := NewEvaluator(createSource(200, `{}`, nil))

	result := e.Evaluate(&Assertion{Subject: "status", Operator: OpEquals, Expected: 200})
	assert.True(t, result.Passed)
	assert.Equal(t, 200, result.Actual)

	result = e.Evaluate(&Assertion{Subject: "status", Operator: OpNotEquals, Expected: 404})
	assert.True(t, result.Passed)
}

func TestEvaluator_ExpectStatus(t *testing.T) {
	e := NewEvaluator(createSource(503, ``, nil))

	assert.True(t, e.ExpectStatus(503).Passed)

	result := e.ExpectStatus(200)
	assert.False(t, result.Passed)
	assert.Equal(t, "expected 200, got 503", result.Message)
}

func TestEvaluator_Body(t *testing.T) {
	e := NewEvaluator(createSource(200, `{"user":{"name":"John","age":30},"items":[{"id":1},{"id":2}]}`, nil))

	tests := []struct {
		name string
		a    Assertion
		want bool
	}{
		{"nested string", Assertion{"body.user.name", OpEquals, "John"}, true},
		{"number equals int", Assertion{"body.user.age", OpEquals, 30}, true},
		{"greater than", Assertion{"body.user.age", OpGreaterThan, 18}, true},
		{"less or equal fails", Assertion{"body.user.age", OpLessOrEqual, 29}, false},
		{"bracket index", Assertion{"body.items[1].id", OpEquals, 2}, true},
		{"length", Assertion{"body.items", OpLength, 2}, true},
		{"type object", Assertion{"body.user", OpType, "object"}, true},
		{"type array", Assertion{"body.items", OpType, "array"}, true},
		{"missing does not exist", Assertion{"body.user.email", OpNotExists, nil}, true},
		{"exists", Assertion{"body.user", OpExists, nil}, true},
		{"in", Assertion{"body.user.name", OpIn, []any{"Jane", "John"}}, true},
		{"not in", Assertion{"body.user.name", OpNotIn, []any{"Jane"}}, true},
		{"includes", Assertion{"body.items", OpIncludes, map[string]any{"id": float64(1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(&tt.a)
			assert.Equal(t, tt.want, result.Passed, "message: %s", result.Message)
		})
	}
}

func TestEvaluator_LengthReportsActualLength(t *testing.T) {
	e := NewEvaluator(createSource(200, `{"items":[1,2,3]}`, nil))
	result := e.Evaluate(&Assertion{Subject: "body.items", Operator: OpLength, Expected: 2})
	assert.False(t, result.Passed)
	assert.Equal(t, 3, result.Actual)
	assert.Equal(t, "expected length 2, got 3", result.Message)
}

func TestEvaluator_PlainBody(t *testing.T) {
	e := NewEvaluator(createSource(200, `hello world`, nil))

	assert.True(t, e.Evaluate(&Assertion{Subject: "body", Operator: OpContains, Expected: "world"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body", Operator: OpStartsWith, Expected: "hello"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body", Operator: OpEndsWith, Expected: "world"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body", Operator: OpMatches, Expected: "/^hel+o/"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body", Operator: OpNotContains, Expected: "bye"}).Passed)

	result := e.Evaluate(&Assertion{Subject: "body.a", Operator: OpExists})
	assert.False(t, result.Passed)
	assert.Equal(t, "response body is not JSON", result.Message)
}

func TestEvaluator_HeaderAndURL(t *testing.T) {
	e := NewEvaluator(createSource(200, `{}`, map[string]string{"Content-Type": "application/json; charset=utf-8"}))

	assert.True(t, e.Evaluate(&Assertion{Subject: "header content-type", Operator: OpContains, Expected: "json"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "header X-Missing", Operator: OpNotExists}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "url", Operator: OpEquals, Expected: "http://example.test/"}).Passed)

	result := e.Evaluate(&Assertion{Subject: "cookies", Operator: OpExists})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "unknown subject")
}

func TestEvaluator_InvalidRegex(t *testing.T) {
	e := NewEvaluator(createSource(200, `x`, nil))
	result := e.Evaluate(&Assertion{Subject: "body", Operator: OpMatches, Expected: "(["})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "invalid regex pattern")
}

func TestEvaluator_Each(t *testing.T) {
	e := NewEvaluator(createSource(200, `{"users":[{"name":"a"},{"name":"b"}],"ids":[3,3],"empty":[]}`, nil))

	t.Run("operator map", func(t *testing.T) {
		result := e.Evaluate(&Assertion{
			Subject:  "body.users",
			Operator: OpEach,
			Expected: map[string]any{"operator": "type", "value": "object"},
		})
		assert.True(t, result.Passed, "message: %s", result.Message)
	})

	t.Run("plain value", func(t *testing.T) {
		assert.True(t, e.Evaluate(&Assertion{Subject: "body.ids", Operator: OpEach, Expected: 3}).Passed)
	})

	t.Run("failing item", func(t *testing.T) {
		result := e.Evaluate(&Assertion{
			Subject:  "body.ids",
			Operator: OpEach,
			Expected: map[string]any{"operator": ">", "value": 3},
		})
		assert.False(t, result.Passed)
		assert.Equal(t, "item[0]: expected 3 > 3", result.Message)
	})

	t.Run("empty array", func(t *testing.T) {
		assert.True(t, e.Evaluate(&Assertion{Subject: "body.empty", Operator: OpEach, Expected: 1}).Passed)
	})
}

const userSchema = `{
	"type": "object",
	"required": ["name", "email"],
	"properties": {
		"name": {"type": "string"},
		"email": {"type": "string"}
	}
}`

func TestEvaluator_ValidateSchema(t *testing.T) {
	ok := NewEvaluator(createSource(200, `{"name":"John","email":"john@example.com"}`, nil))
	result := ok.ValidateSchema([]byte(userSchema))
	assert.True(t, result.Passed, "message: %s", result.Message)

	bad := NewEvaluator(createSource(200, `{"name":1}`, nil))
	result = bad.ValidateSchema([]byte(userSchema))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "schema validation failed")
	assert.Contains(t, result.Message, "email")

	text := NewEvaluator(createSource(200, `not json`, nil))
	result = text.ValidateSchema([]byte(userSchema))
	assert.False(t, result.Passed)
	assert.Equal(t, "response body is not JSON", result.Message)
}

func TestEvaluator_SchemaFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.schema.json"), []byte(userSchema), 0o644))

	e := NewEvaluator(createSource(200, `{"name":"John","email":"john@example.com"}`, nil), WithBaseDir(dir))

	result := e.Evaluate(&Assertion{Subject: "body", Operator: OpSchema, Expected: "user.schema.json"})
	assert.True(t, result.Passed, "message: %s", result.Message)

	result = e.Evaluate(&Assertion{Subject: "body", Operator: OpSchema, Expected: "../../../etc/passwd"})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "path traversal")
}

func TestEvaluateAll(t *testing.T) {
	assertions := []*Assertion{
		{Subject: "status", Operator: OpEquals, Expected: 200},
		{Subject: "body.status", Operator: OpEquals, Expected: "ok"},
		{Subject: "body.count", Operator: OpGreaterThan, Expected: 10},
	}

	results := EvaluateAll(createSource(200, `{"status":"ok","count":5}`, nil), assertions)
	require.Len(t, results, 3)

	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "body.count", failed[0].Subject)
	assert.Equal(t, ">", failed[0].Operator)
}

func TestValidatePathWithinBase(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		baseDir string
		wantErr bool
	}{
		{"no base", "/etc/passwd", "", false},
		{"inside", "/srv/schemas/a.json", "/srv/schemas", false},
		{"base itself", "/srv/schemas", "/srv/schemas", false},
		{"sibling prefix", "/srv/schemas-old/a.json", "/srv/schemas", true},
		{"escape", "/srv/schemas/../secret.json", "/srv/schemas", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePathWithinBase(tt.path, tt.baseDir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
