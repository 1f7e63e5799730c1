package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/xmlhttp/packages/core/config"
	"github.com/abdul-hamid-achik/xmlhttp/packages/output"
	"github.com/abdul-hamid-achik/xmlhttp/packages/stress"
	"github.com/abdul-hamid-achik/xmlhttp/packages/xhr"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newUsersServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Custom", r.Header.Get("X-Custom"))
		_, _ = w.Write([]byte(`{"users":[{"id":1,"name":"ada"},{"id":2,"name":"grace"}]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func testOptions(t *testing.T) []xhr.Option {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	opts, err := config.DefaultConfig().Options(logger)
	require.NoError(t, err)
	return opts
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		in      string
		want    header
		wantErr bool
	}{
		{in: "Content-Type: application/json", want: header{Name: "Content-Type", Value: "application/json"}},
		{in: "X-Empty:", want: header{Name: "X-Empty", Value: ""}},
		{in: "X-Url: http://example.com", want: header{Name: "X-Url", Value: "http://example.com"}},
		{in: "no-colon", wantErr: true},
		{in: ": value", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHeader(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseUser(t *testing.T) {
	user, password := parseUser("ada:s3cr:et")
	assert.Equal(t, "ada", user)
	assert.Equal(t, "s3cr:et", password)

	user, password = parseUser("ada")
	assert.Equal(t, "ada", user)
	assert.Empty(t, password)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, logLevel(0, false))
	assert.Equal(t, logrus.InfoLevel, logLevel(1, false))
	assert.Equal(t, logrus.DebugLevel, logLevel(2, false))
	assert.Equal(t, logrus.TraceLevel, logLevel(5, false))
	assert.Equal(t, logrus.ErrorLevel, logLevel(3, true))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag")))
	assert.Equal(t, ExitConfigError, exitCode(withExit(ExitConfigError, errors.New("bad"))))
	assert.Equal(t, ExitTestFailure, exitCode(reported(ExitTestFailure, errors.New("failed"))))
	assert.Nil(t, withExit(ExitConfigError, nil))

	wrapped := withExit(ExitNetworkError, context.Canceled)
	assert.ErrorIs(t, wrapped, context.Canceled)
}

func TestFetchFlags_Config(t *testing.T) {
	f := &fetchFlags{
		timeout:            "1500ms",
		maxRedirects:       3,
		insecure:           true,
		disableHeaderCheck: true,
		noDecompress:       true,
		syncMode:           "spool",
		responseType:       "json",
		ca:                 "ca.pem",
	}
	c, err := f.config()
	require.NoError(t, err)

	merged := config.DefaultConfig().Merge(c)
	assert.Equal(t, 1500, merged.Timeout)
	assert.Equal(t, 3, merged.MaxRedirects)
	assert.False(t, merged.GetRejectUnauthorized())
	assert.True(t, merged.GetDisableHeaderCheck())
	assert.False(t, merged.GetDecompress())
	assert.False(t, merged.GetDetachKeepAlive())
	assert.Equal(t, "spool", merged.SyncMode)
	assert.Equal(t, "json", merged.ResponseType)
	require.NotNil(t, merged.TLS)
	assert.Equal(t, "ca.pem", merged.TLS.CA)
}

func TestFetchFlags_ConfigUnsetKeepsDefaults(t *testing.T) {
	c, err := (&fetchFlags{}).config()
	require.NoError(t, err)

	merged := config.DefaultConfig().Merge(c)
	assert.True(t, merged.IsDefault())
}

func TestFetchFlags_ConfigInvalidTimeout(t *testing.T) {
	_, err := (&fetchFlags{timeout: "soon"}).config()
	assert.Error(t, err)
}

func TestFetchFlags_Request(t *testing.T) {
	dir := t.TempDir()
	bodyFile := filepath.Join(dir, "body.json")
	require.NoError(t, os.WriteFile(bodyFile, []byte(`{"a":1}`), 0644))

	f := &fetchFlags{
		method:   "post",
		headers:  []string{"Content-Type: application/json", "X-Custom: one"},
		dataFile: bodyFile,
		user:     "ada:secret",
		sync:     true,
	}
	req, err := f.request("http://example.com/users")
	require.NoError(t, err)

	assert.Equal(t, "post", req.Method)
	assert.Equal(t, []byte(`{"a":1}`), req.Body)
	assert.Equal(t, "ada", req.User)
	assert.Equal(t, "secret", req.Password)
	assert.True(t, req.Sync)
	assert.Len(t, req.Headers, 2)

	_, err = (&fetchFlags{headers: []string{"broken"}}).request("http://example.com")
	assert.Error(t, err)
	_, err = (&fetchFlags{dataFile: filepath.Join(dir, "missing")}).request("http://example.com")
	assert.Error(t, err)
}

func TestFetchFlags_Checks(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schema, []byte(`{"type":"object"}`), 0644))

	c, err := (&fetchFlags{
		captures:     []string{"first=body:users.0.name"},
		expects:      []string{"status == 200"},
		expectStatus: 200,
		schema:       schema,
	}).checks()
	require.NoError(t, err)
	assert.Len(t, c.captures, 1)
	assert.Len(t, c.assertions, 1)
	assert.Equal(t, dir, c.baseDir)

	_, err = (&fetchFlags{expects: []string{"status"}}).checks()
	assert.Error(t, err)
	_, err = (&fetchFlags{captures: []string{"bogus"}}).checks()
	assert.Error(t, err)
}

func TestFetchFlags_StressConfig(t *testing.T) {
	f := &fetchFlags{duration: "2s", concurrency: 4, rate: 10, threshold: "p95<200ms"}
	assert.True(t, f.repeating())

	cfg, err := f.stressConfig()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Count)
	assert.Equal(t, 2*time.Second, cfg.Duration)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 200*time.Millisecond, cfg.Thresholds.P95)

	single := &fetchFlags{concurrency: 1}
	assert.False(t, single.repeating())
	cfg, err = single.stressConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Count)

	_, err = (&fetchFlags{repeat: 5}).stressConfig()
	assert.Error(t, err, "concurrency 0 is rejected")
	_, err = (&fetchFlags{duration: "later", concurrency: 1}).stressConfig()
	assert.Error(t, err)
}

func TestNewFormatter(t *testing.T) {
	f, err := newFormatter("json", io.Discard, false, true)
	require.NoError(t, err)
	assert.IsType(t, &output.JSONFormatter{}, f)

	f, err = newFormatter("console", io.Discard, false, true)
	require.NoError(t, err)
	assert.IsType(t, &output.ConsoleFormatter{}, f)

	_, err = newFormatter("xml", io.Discard, false, true)
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	server := newUsersServer(t)

	for _, sync := range []bool{false, true} {
		name := "async"
		if sync {
			name = "sync"
		}
		t.Run(name, func(t *testing.T) {
			req := &fetchRequest{
				Method:  "PUT",
				URL:     server.URL,
				Headers: []header{{Name: "X-Custom", Value: "yes"}, {Name: "Cookie", Value: "dropped"}},
				Body:    []byte("{}"),
				Sync:    sync,
			}
			x, err := send(context.Background(), testOptions(t), req, nil)
			require.NoError(t, err)

			assert.Equal(t, xhr.Done, x.ReadyState())
			assert.Equal(t, 200, x.Status())
			assert.Equal(t, "PUT", x.GetResponseHeader("X-Method"))
			assert.Equal(t, "yes", x.GetResponseHeader("X-Custom"))
			assert.NoError(t, x.Err())
		})
	}
}

func TestSend_Refused(t *testing.T) {
	_, err := send(context.Background(), testOptions(t), &fetchRequest{Method: "TRACE", URL: "http://example.com"}, nil)
	assert.Equal(t, xhr.KindPolicy, xhr.KindOf(err))

	_, err = send(context.Background(), testOptions(t), &fetchRequest{Method: "GET", URL: "ftp://example.com/file"}, nil)
	assert.Equal(t, xhr.KindProtocol, xhr.KindOf(err))
}

func TestSingleFetch(t *testing.T) {
	server := newUsersServer(t)
	chk, err := (&fetchFlags{
		captures:     []string{"first=body:users.0.name"},
		expects:      []string{"body.users length 2"},
		expectStatus: 200,
	}).checks()
	require.NoError(t, err)

	var buf bytes.Buffer
	f := output.NewJSONFormatter(output.JSONWithWriter(&buf))
	err = singleFetch(context.Background(), testOptions(t), &fetchRequest{Method: "GET", URL: server.URL}, chk, f)
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, int64(1), gjson.Get(out, "summary.passed").Int())
	assert.Equal(t, "ada", gjson.Get(out, "requests.0.captures.first").String())
	assert.Equal(t, int64(2), gjson.Get(out, "requests.0.assertions.#").Int())
	assert.True(t, gjson.Get(out, "requests.0.events.#").Int() > 0)
}

func TestSingleFetch_AssertionFailure(t *testing.T) {
	server := newUsersServer(t)
	chk, err := (&fetchFlags{expectStatus: 404}).checks()
	require.NoError(t, err)

	var buf bytes.Buffer
	f := output.NewJSONFormatter(output.JSONWithWriter(&buf))
	err = singleFetch(context.Background(), testOptions(t), &fetchRequest{Method: "GET", URL: server.URL}, chk, f)
	assert.Equal(t, ExitTestFailure, exitCode(err))
	assert.Equal(t, int64(1), gjson.Get(buf.String(), "summary.failed").Int())
}

func TestSingleFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := server.URL
	server.Close()

	chk, err := (&fetchFlags{}).checks()
	require.NoError(t, err)

	var buf bytes.Buffer
	f := output.NewJSONFormatter(output.JSONWithWriter(&buf))
	err = singleFetch(context.Background(), testOptions(t), &fetchRequest{Method: "GET", URL: target}, chk, f)
	assert.Equal(t, ExitNetworkError, exitCode(err))
	assert.NotEmpty(t, gjson.Get(buf.String(), "requests.0.error").String())
}

func TestSingleFetch_Refused(t *testing.T) {
	chk, err := (&fetchFlags{}).checks()
	require.NoError(t, err)

	var buf bytes.Buffer
	f := output.NewJSONFormatter(output.JSONWithWriter(&buf))
	err = singleFetch(context.Background(), testOptions(t), &fetchRequest{Method: "CONNECT", URL: "http://example.com"}, chk, f)
	assert.Equal(t, ExitUsageError, exitCode(err))
	assert.Equal(t, int64(1), gjson.Get(buf.String(), "errors.#").Int())
}

func TestRepeatFetch(t *testing.T) {
	server := newUsersServer(t)
	chk, err := (&fetchFlags{expectStatus: 200}).checks()
	require.NoError(t, err)

	cfg := &stress.Config{Count: 6, Concurrency: 2}
	var buf bytes.Buffer
	err = repeatFetch(context.Background(), cfg, testOptions(t), &fetchRequest{Method: "GET", URL: server.URL}, chk, &buf, true, logrus.New())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SUMMARY")
	assert.Contains(t, buf.String(), "Count: 6")
}

func TestRepeatFetch_FailedSends(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := server.URL
	server.Close()

	chk, err := (&fetchFlags{}).checks()
	require.NoError(t, err)

	cfg := &stress.Config{Count: 3, Concurrency: 1}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	err = repeatFetch(context.Background(), cfg, testOptions(t), &fetchRequest{Method: "GET", URL: target}, chk, io.Discard, true, logger)
	assert.Equal(t, ExitTestFailure, exitCode(err))
	assert.Contains(t, err.Error(), "3 of 3 sends failed")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xmlhttp.yaml")

	var buf bytes.Buffer
	initCmd.SetOut(&buf)
	t.Cleanup(func() { initCmd.SetOut(nil) })

	require.NoError(t, initCommand(initCmd, []string{path}))
	assert.Contains(t, buf.String(), "Created: "+path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "XMLHttpRequest", cfg.Headers["X-Requested-With"])

	err = initCommand(initCmd, []string{path})
	assert.Equal(t, ExitUsageError, exitCode(err))
}
