package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/wippyai/wasm-inspect/config"
	"github.com/wippyai/wasm-inspect/inspect"
	"github.com/wippyai/wasm-inspect/wasm"
)

type cliFlags struct {
	wasmFile       string
	configPath     string
	format         string
	output         string
	logLevel       string
	timeout        time.Duration
	workers        int
	verify         bool
	strict         bool
	lenientExports bool
	interactive    bool
}

func main() {
	os.Exit(cli(os.Args[1:]))
}

// cli runs the command and returns its exit status: 0 on success, 1 on
// usage, configuration or output errors, 2 when any module failed. It
// returns instead of exiting so deferred cleanup always runs.
func cli(args []string) int {
	fs := flag.NewFlagSet("wasminspect", flag.ContinueOnError)
	var f cliFlags
	fs.StringVar(&f.wasmFile, "wasm", "", "Path to module wasm file (more may follow as arguments)")
	fs.StringVar(&f.configPath, "config", "", "Path to "+config.FileName+" (default: search upwards from the working directory)")
	fs.StringVar(&f.format, "format", "text", "Output format: text, json or cbor")
	fs.StringVar(&f.output, "o", "", "Write output to file instead of stdout")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Per-module time budget")
	fs.IntVar(&f.workers, "workers", 0, "Modules parsed concurrently")
	fs.BoolVar(&f.verify, "verify", false, "Cross-check exports against wazero")
	fs.BoolVar(&f.strict, "strict", false, "Require canonical section order")
	fs.BoolVar(&f.lenientExports, "lenient-exports", false, "Only bounds check function exports")
	fs.BoolVar(&f.interactive, "i", false, "Interactive export browser")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	paths := fs.Args()
	if f.wasmFile != "" {
		paths = append([]string{f.wasmFile}, paths...)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wasminspect -wasm <file.wasm> [more.wasm ...] [-format text|json|cbor]")
		fmt.Fprintln(os.Stderr, "       wasminspect -wasm <file.wasm> -verify")
		fmt.Fprintln(os.Stderr, "       wasminspect -wasm <file.wasm> -i  (interactive mode)")
		return 1
	}

	cfg, err := loadConfig(fs, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	wasm.SetLogger(logger)
	inspect.SetLogger(logger)

	if f.interactive {
		if len(paths) != 1 {
			fmt.Fprintln(os.Stderr, "Error: interactive mode takes exactly one module")
			return 1
		}
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			return 1
		}
		if err := runInteractive(paths[0], cfg.InspectOptions()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	failed, err := run(context.Background(), paths, cfg.InspectOptions(), f.format, f.output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if failed > 0 {
		return 2
	}
	return 0
}

// loadConfig reads the configuration file and lets explicitly set flags
// override it.
func loadConfig(fs *flag.FlagSet, f cliFlags) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return nil, err
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "strict":
			cfg.Reader.StrictOrder = f.strict
		case "lenient-exports":
			cfg.Reader.LenientExports = f.lenientExports
		case "workers":
			cfg.Batch.Workers = f.workers
		case "timeout":
			cfg.Batch.Timeout = config.Duration{Duration: f.timeout}
		case "verify":
			cfg.Verify.Enabled = f.verify
		case "log-level":
			cfg.Log.Level = f.logLevel
		}
	})
	return cfg, cfg.Validate()
}

// run inspects every path and writes the results. It returns how many
// modules failed.
func run(ctx context.Context, paths []string, opts inspect.Options, format, output string) (failed int, err error) {
	switch format {
	case "text", "json", "cbor":
	default:
		return 0, fmt.Errorf("unknown format %q", format)
	}

	inputs := make([]inspect.Input, len(paths))
	for i, p := range paths {
		inputs[i] = inspect.Input{Path: p}
	}
	results := inspect.Batch(ctx, inputs, opts)

	var out io.Writer = os.Stdout
	tty := output == "" && term.IsTerminal(int(os.Stdout.Fd()))
	if output != "" {
		file, ferr := os.Create(output)
		if ferr != nil {
			return 0, fmt.Errorf("create output: %w", ferr)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		out = file
	}

	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	switch format {
	case "text":
		renderText(out, results, newStyles(tty))
	case "json":
		data, err := inspect.EncodeJSON(inspect.NewManifest(results))
		if err != nil {
			return failed, err
		}
		if _, err := out.Write(data); err != nil {
			return failed, err
		}
	case "cbor":
		if tty {
			return failed, fmt.Errorf("refusing to write CBOR to a terminal, use -o")
		}
		data, err := inspect.EncodeCBOR(inspect.NewManifest(results))
		if err != nil {
			return failed, err
		}
		if _, err := out.Write(data); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
