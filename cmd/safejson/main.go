// safejson reads a JavaScript value, e.g. a JSON document or an object literal
// copied from a <script> tag, and writes it as valid JSON together with every
// change that was necessary.
//
// Usage:
//
//	safejson [flags] <url/file/->
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/xarantolus/safejson"
	"github.com/xarantolus/safejson/internal/config"
	"github.com/xarantolus/safejson/internal/report"
)

const (
	exitOK      = 0
	exitError   = 1
	exitChanged = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flagSet := pflag.NewFlagSet("safejson", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var (
		configPath   = flagSet.String("config", "", "path to a YAML or JSONC config file (default: $"+config.EnvVar+")")
		format       = flagSet.StringP("format", "f", string(report.JSON), "output format, json or cbor")
		indent       = flagSet.String("indent", "", "indent JSON output with this string")
		changes      = flagSet.Bool("changes", true, "write the list of changes together with the value")
		stacks       = flagSet.Bool("stacks", false, "include stack traces of caught panics")
		all          = flagSet.BoolP("all", "a", false, "find and convert every object and array in the input, e.g. in a web page")
		limit        = flagSet.Int("limit", 0, "stop after this many values when using --all")
		failOnChange = flagSet.Bool("fail-on-change", false, "exit with status 2 if the input had to be changed")
		logLevel     = flagSet.String("log-level", "info", "debug, info, warn or error")
	)
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "Usage: safejson [flags] <url/file/->")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	// Need exactly one argument, either an URL, a file path or - for stdin
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return exitError
	}
	source := flagSet.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}

	// Flags that were given explicitly override the config file
	if flagSet.Changed("format") {
		cfg.Format = report.Format(*format)
	}
	if flagSet.Changed("indent") {
		cfg.Indent = *indent
	}
	if flagSet.Changed("changes") {
		cfg.Changes = *changes
	}
	if flagSet.Changed("stacks") {
		cfg.Stacks = *stacks
	}
	if flagSet.Changed("all") {
		cfg.All = *all
	}
	if flagSet.Changed("limit") {
		cfg.Limit = *limit
	}
	if flagSet.Changed("fail-on-change") {
		cfg.FailOnChange = *failOnChange
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}

	level, _ := cfg.Level()
	if os.Getenv("SAFEJSON_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
	}))

	input, err := open(ctx, source, stdin)
	if err != nil {
		logger.Error("opening input", "source", source, "error", err)
		return exitError
	}
	defer input.Close()

	var (
		count   int
		changed bool
	)

	// write converts v and writes it to stdout
	write := func(v any) error {
		count++

		res := safejson.Convert(v)
		for _, c := range res.Changes {
			attrs := []any{"path", c.Path.String(), "reason", c.Reason}
			if c.Error != nil {
				attrs = append(attrs, "error", c.Error.Message)
			}
			logger.Debug("changed value", attrs...)
		}
		changed = changed || len(res.Changes) > 0

		r := report.Build(res, cfg.Stacks)
		var out any = r
		if !cfg.Changes {
			out = r.Value
		}
		return report.Encode(stdout, out, cfg.Format, cfg.Indent)
	}

	if cfg.All {
		err = safejson.Extract(input, func(v any) error {
			if err := write(v); err != nil {
				return err
			}
			if count == cfg.Limit {
				logger.Info("stopped extracting", "limit", cfg.Limit)
				return safejson.ErrStop
			}
			return nil
		})
	} else {
		var v any
		v, err = safejson.ParseLiteral(input)
		if err == nil {
			err = write(v)
		}
	}
	if err != nil {
		logger.Error("converting input", "source", source, "error", err)
		return exitError
	}
	logger.Info("converted input", "source", source, "values", count)

	if cfg.FailOnChange && changed {
		return exitChanged
	}
	return exitOK
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// open returns a reader for source, which is either an http(s) URL, a file path or - for stdin
func open(ctx context.Context, source string, stdin io.Reader) (io.ReadCloser, error) {
	if source == "-" {
		return io.NopCloser(stdin), nil
	}

	// Check if it's an URL or file
	u, err := url.ParseRequestURI(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("downloading: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("downloading: unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}

	// So it must be a file
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}
