package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/xmlhttp/packages/assertions"
	"github.com/abdul-hamid-achik/xmlhttp/packages/capture"
	"github.com/abdul-hamid-achik/xmlhttp/packages/core/config"
	"github.com/abdul-hamid-achik/xmlhttp/packages/eventloop"
	"github.com/abdul-hamid-achik/xmlhttp/packages/output"
	"github.com/abdul-hamid-achik/xmlhttp/packages/stress"
	"github.com/abdul-hamid-achik/xmlhttp/packages/xhr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Send a request through the XMLHttpRequest emulation",
	Long: `Send one request the way a page script would, printing every
lifecycle event as it fires and the response once the request is DONE.

http, https and file URLs are supported. Forbidden request headers are
dropped with a warning unless --disable-header-check is given.

Examples:
  xmlhttp fetch https://api.example.com/users
  xmlhttp fetch https://api.example.com/users -t json --capture id=body:0.id
  xmlhttp fetch https://api.example.com/users -X POST -H "Content-Type: application/json" -d '{"name":"a"}'
  xmlhttp fetch file:///tmp/data.bin -t arraybuffer
  xmlhttp fetch https://api.example.com/health --sync --sync-mode spool
  xmlhttp fetch https://api.example.com/users --expect-status 200 --expect "body.total > 0"

Repeat Mode:
  xmlhttp fetch https://api.example.com/health --repeat 100 --concurrency 10
  xmlhttp fetch https://api.example.com/health --duration 30s --rate 50 --threshold "p95<200ms,errors<1%"`,
	Args: cobra.ExactArgs(1),
	RunE: fetchCommand,
}

// fetchFlags holds the values bound to fetch's flags.
type fetchFlags struct {
	method       string
	headers      []string
	data         string
	dataFile     string
	responseType string
	sync         bool
	syncMode     string
	spoolDir     string
	user         string

	insecure   bool
	cert       string
	key        string
	passphrase string
	ca         string
	ciphers    string

	maxRedirects       int
	timeout            string
	disableHeaderCheck bool
	detachKeepAlive    bool
	noDecompress       bool

	captures     []string
	expects      []string
	expectStatus int
	schema       string

	repeat      int
	rate        float64
	concurrency int
	duration    string
	threshold   string

	output     string
	outputFile string
}

var fetchOpts fetchFlags

func init() {
	f := fetchCmd.Flags()

	// Request flags
	f.StringVarP(&fetchOpts.method, "method", "X", "GET", "Request method")
	f.StringArrayVarP(&fetchOpts.headers, "header", "H", nil, "Request header as \"Name: value\" (repeatable)")
	f.StringVarP(&fetchOpts.data, "data", "d", "", "Request body")
	f.StringVar(&fetchOpts.dataFile, "data-file", "", "Read the request body from a file")
	f.StringVarP(&fetchOpts.responseType, "response-type", "t", getEnvString("XMLHTTP_RESPONSE_TYPE", ""), "Response type: text, json, arraybuffer, blob, document (env: XMLHTTP_RESPONSE_TYPE)")
	f.StringVarP(&fetchOpts.user, "user", "u", "", "Basic auth credentials as user:password")
	fetchCmd.MarkFlagsMutuallyExclusive("data", "data-file")

	// Synchronous send flags
	f.BoolVar(&fetchOpts.sync, "sync", false, "Send synchronously, blocking until DONE")
	f.StringVar(&fetchOpts.syncMode, "sync-mode", getEnvString("XMLHTTP_SYNC_MODE", ""), "How synchronous sends are carried out: direct or spool (env: XMLHTTP_SYNC_MODE)")
	f.StringVar(&fetchOpts.spoolDir, "spool-dir", getEnvString("XMLHTTP_SPOOL_DIR", ""), "Directory for spool mode files (default: system temp dir) (env: XMLHTTP_SPOOL_DIR)")

	// Network flags
	f.BoolVarP(&fetchOpts.insecure, "insecure", "k", getEnvBool("XMLHTTP_INSECURE", false), "Disable TLS certificate validation (env: XMLHTTP_INSECURE)")
	f.StringVar(&fetchOpts.cert, "cert", "", "Client certificate PEM file")
	f.StringVar(&fetchOpts.key, "key", "", "Client key PEM file")
	f.StringVar(&fetchOpts.passphrase, "passphrase", "", "Passphrase for an encrypted client key")
	f.StringVar(&fetchOpts.ca, "ca", "", "CA bundle PEM file")
	f.StringVar(&fetchOpts.ciphers, "ciphers", "", "Allowed cipher suites (colon or comma separated)")
	f.IntVar(&fetchOpts.maxRedirects, "max-redirects", 0, "Maximum redirects to follow (default 10)")
	f.StringVar(&fetchOpts.timeout, "timeout", getEnvString("XMLHTTP_TIMEOUT", ""), "Transfer timeout (e.g., 30s, 1m) (env: XMLHTTP_TIMEOUT)")
	f.BoolVar(&fetchOpts.disableHeaderCheck, "disable-header-check", false, "Allow forbidden request headers")
	f.BoolVar(&fetchOpts.detachKeepAlive, "detach-keep-alive", false, "Close the connection after the response")
	f.BoolVar(&fetchOpts.noDecompress, "no-decompress", false, "Do not request or decode compressed bodies")

	// Check flags
	f.StringArrayVar(&fetchOpts.captures, "capture", nil, "Capture a value, e.g. \"id=body:data.id\" or \"header:Content-Type\" (repeatable)")
	f.StringArrayVar(&fetchOpts.expects, "expect", nil, "Assertion, e.g. \"body.count > 0\" (repeatable)")
	f.IntVar(&fetchOpts.expectStatus, "expect-status", 0, "Expected status code")
	f.StringVar(&fetchOpts.schema, "schema", "", "JSON schema file the response body must satisfy")

	// Repeat flags
	f.IntVar(&fetchOpts.repeat, "repeat", 0, "Number of sends (default 1, unbounded with --duration)")
	f.Float64Var(&fetchOpts.rate, "rate", 0, "Sends per second when repeating (default: as fast as concurrency allows)")
	f.IntVar(&fetchOpts.concurrency, "concurrency", 1, "Sends in flight at once when repeating")
	f.StringVar(&fetchOpts.duration, "duration", "", "Repeat for this long (e.g., 30s, 5m)")
	f.StringVar(&fetchOpts.threshold, "threshold", "", "Pass/fail thresholds when repeating (e.g., \"p95<200ms,errors<0.1%\")")

	// Output flags
	f.StringVarP(&fetchOpts.output, "output", "o", getEnvString("XMLHTTP_OUTPUT", "console"), "Output format: console, json (env: XMLHTTP_OUTPUT)")
	f.StringVar(&fetchOpts.outputFile, "output-file", getEnvString("XMLHTTP_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: XMLHTTP_OUTPUT_FILE)")
}

// header is one -H flag.
type header struct {
	Name  string
	Value string
}

func parseHeader(s string) (header, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return header{}, fmt.Errorf("invalid header %q, expected \"Name: value\"", s)
	}
	return header{Name: name, Value: strings.TrimSpace(value)}, nil
}

func parseUser(s string) (user, password string) {
	user, password, _ = strings.Cut(s, ":")
	return user, password
}

// fetchRequest is what fetch opens and sends.
type fetchRequest struct {
	Method   string
	URL      string
	Headers  []header
	Body     []byte
	Sync     bool
	User     string
	Password string
}

func (f *fetchFlags) request(rawURL string) (*fetchRequest, error) {
	req := &fetchRequest{
		Method: f.method,
		URL:    rawURL,
		Sync:   f.sync,
	}
	for _, h := range f.headers {
		parsed, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, parsed)
	}

	switch {
	case f.dataFile != "":
		data, err := os.ReadFile(f.dataFile)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = data
	case f.data != "":
		req.Body = []byte(f.data)
	}

	if f.user != "" {
		req.User, req.Password = parseUser(f.user)
	}
	return req, nil
}

// config returns the settings given on the command line. Unset flags leave
// their field zero so Merge keeps the file and env values.
func (f *fetchFlags) config() (*config.Config, error) {
	c := &config.Config{
		MaxRedirects: f.maxRedirects,
		SyncMode:     f.syncMode,
		SpoolDir:     f.spoolDir,
		ResponseType: f.responseType,
	}

	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", f.timeout, err)
		}
		c.Timeout = int(d.Milliseconds())
	}

	if f.insecure {
		c.RejectUnauthorized = config.BoolPtr(false)
	}
	if f.disableHeaderCheck {
		c.DisableHeaderCheck = config.BoolPtr(true)
	}
	if f.detachKeepAlive {
		c.DetachKeepAlive = config.BoolPtr(true)
	}
	if f.noDecompress {
		c.Decompress = config.BoolPtr(false)
	}

	if f.cert != "" || f.key != "" || f.passphrase != "" || f.ca != "" || f.ciphers != "" {
		c.TLS = &config.TLSConfig{
			Cert:       f.cert,
			Key:        f.key,
			Passphrase: f.passphrase,
			CA:         f.ca,
			Ciphers:    f.ciphers,
		}
	}
	return c, nil
}

// checks are evaluated against every finished request.
type checks struct {
	captures   []*capture.Capture
	assertions []*assertions.Assertion
	status     int
	schema     []byte
	baseDir    string
}

func (f *fetchFlags) checks() (*checks, error) {
	c := &checks{status: f.expectStatus, baseDir: "."}

	var err error
	if c.captures, err = capture.ParseAll(f.captures); err != nil {
		return nil, err
	}
	if c.assertions, err = assertions.ParseAll(f.expects); err != nil {
		return nil, err
	}
	if f.schema != "" {
		if c.schema, err = os.ReadFile(f.schema); err != nil {
			return nil, fmt.Errorf("reading schema: %w", err)
		}
		c.baseDir = filepath.Dir(f.schema)
	}
	return c, nil
}

func (c *checks) apply(x *xhr.Request, r *output.Report) {
	if len(c.captures) > 0 {
		r.Captures = capture.ExtractAll(x, c.captures)
	}

	ev := assertions.NewEvaluator(x, assertions.WithBaseDir(c.baseDir))
	if c.status > 0 {
		r.Assertions = append(r.Assertions, ev.ExpectStatus(c.status))
	}
	if c.schema != nil {
		r.Assertions = append(r.Assertions, ev.ValidateSchema(c.schema))
	}
	for _, a := range c.assertions {
		r.Assertions = append(r.Assertions, ev.Evaluate(a))
	}
}

func (f *fetchFlags) repeating() bool {
	return f.repeat > 1 || f.duration != ""
}

func (f *fetchFlags) stressConfig() (*stress.Config, error) {
	cfg := stress.DefaultConfig()
	cfg.Count = f.repeat
	cfg.Rate = f.rate
	cfg.Concurrency = f.concurrency

	if f.duration != "" {
		d, err := time.ParseDuration(f.duration)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", f.duration, err)
		}
		cfg.Duration = d
	}
	if cfg.Count == 0 && cfg.Duration == 0 {
		cfg.Count = 1
	}

	if f.threshold != "" {
		t, err := stress.ParseThresholds(f.threshold)
		if err != nil {
			return nil, err
		}
		cfg.Thresholds = t
	}
	return cfg, cfg.Validate()
}

func newFormatter(format string, w io.Writer, verbose, noColor bool) (output.Formatter, error) {
	switch format {
	case "console", "":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
			output.WithQuiet(quietFlag),
		), nil
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (expected one of: %s)", format, strings.Join(output.Formats, ", "))
}

func fetchCommand(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExit(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}
	flagCfg, err := fetchOpts.config()
	if err != nil {
		return withExit(ExitConfigError, err)
	}
	cfg := fileCfg.ApplyEnv().Merge(flagCfg)

	noColor := noColorFlag || cfg.GetNoColor()
	verbose := verboseFlag > 0 || cfg.GetVerbose()
	logger := newLogger(os.Stderr, noColor)

	opts, err := cfg.Options(logger)
	if err != nil {
		return withExit(ExitConfigError, err)
	}

	req, err := fetchOpts.request(args[0])
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	chk, err := fetchOpts.checks()
	if err != nil {
		return withExit(ExitParseError, err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if fetchOpts.outputFile != "" {
		file, err := os.Create(fetchOpts.outputFile)
		if err != nil {
			return withExit(ExitConfigError, fmt.Errorf("creating output file: %w", err))
		}
		defer file.Close()
		w = file
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if fetchOpts.repeating() {
		scfg, err := fetchOpts.stressConfig()
		if err != nil {
			return withExit(ExitUsageError, err)
		}
		return repeatFetch(ctx, scfg, opts, req, chk, w, noColor, logger)
	}

	formatter, err := newFormatter(fetchOpts.output, w, verbose, noColor)
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	return singleFetch(ctx, opts, req, chk, formatter)
}

func singleFetch(ctx context.Context, opts []xhr.Option, req *fetchRequest, chk *checks, f output.Formatter) (err error) {
	f.FormatHeader(version)
	if fl, ok := f.(output.Flushable); ok {
		defer func() {
			if ferr := fl.Flush(); ferr != nil && err == nil {
				err = ferr
			}
		}()
	}

	start := time.Now()
	x, err := send(ctx, opts, req, f)
	if err != nil {
		f.FormatError(err)
		return reported(ExitUsageError, err)
	}

	report := output.NewReport(x, req.Method, req.URL, time.Since(start))
	if report.Err == nil {
		chk.apply(x, report)
	}
	f.FormatReport(report)

	if report.Err != nil {
		return reported(ExitNetworkError, report.Err)
	}
	if failed := assertions.Failed(report.Assertions); len(failed) > 0 {
		return reported(ExitTestFailure, fmt.Errorf("%d of %d assertions failed", len(failed), len(report.Assertions)))
	}
	return nil
}

func repeatFetch(ctx context.Context, cfg *stress.Config, opts []xhr.Option, req *fetchRequest, chk *checks, w io.Writer, noColor bool, logger logrus.FieldLogger) error {
	reporter := stress.NewReporter(stress.WithWriter(w), stress.WithNoColor(noColor))
	jsonOut := fetchOpts.output == "json"
	if !jsonOut && !quietFlag {
		reporter.Header(req.Method+" "+req.URL, cfg)
	}

	summary, runErr := stress.Run(ctx, cfg, func(ctx context.Context) error {
		x, err := send(ctx, opts, req, nil)
		if err != nil {
			return err
		}
		if err := x.Err(); err != nil {
			logger.WithError(err).Debug("send failed")
			return err
		}
		report := &output.Report{}
		chk.apply(x, report)
		if failed := assertions.Failed(report.Assertions); len(failed) > 0 {
			return fmt.Errorf("%d assertions failed", len(failed))
		}
		return nil
	})
	if summary == nil {
		return withExit(ExitUsageError, runErr)
	}

	results := summary.Evaluate(cfg.Thresholds)
	if jsonOut {
		if err := reporter.JSONSummary(summary, results); err != nil {
			return err
		}
	} else {
		reporter.Summary(summary, results)
	}

	if runErr != nil {
		return withExit(ExitNetworkError, fmt.Errorf("run interrupted: %w", runErr))
	}
	for _, r := range results {
		if !r.Passed {
			return reported(ExitTestFailure, fmt.Errorf("threshold %s failed", r.Name))
		}
	}
	if !cfg.Thresholds.HasThresholds() && summary.ErrorCount > 0 {
		return reported(ExitTestFailure, fmt.Errorf("%d of %d sends failed", summary.ErrorCount, summary.TotalRequests))
	}
	return nil
}

// send opens and sends req on a fresh loop and returns the request once
// the loop has drained. Transfer failures are left on the request's Err;
// the returned error means the request was refused before any transfer.
func send(ctx context.Context, opts []xhr.Option, req *fetchRequest, f output.Formatter) (*xhr.Request, error) {
	loop := eventloop.New()
	x, err := xhr.New(loop, opts...)
	if err != nil {
		return nil, err
	}
	if f != nil {
		detach := output.Watch(x, f)
		defer detach()
	}

	err = loop.Run(func() error {
		if err := x.OpenWithCredentials(req.Method, req.URL, !req.Sync, req.User, req.Password); err != nil {
			return err
		}
		for _, h := range req.Headers {
			// forbidden headers are refused and logged by the request
			if _, err := x.SetRequestHeader(h.Name, h.Value); err != nil {
				return err
			}
		}

		err := x.SendContext(ctx, req.Body)
		switch xhr.KindOf(err) {
		case xhr.KindTransport, xhr.KindAbort:
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return x, nil
}
