package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/indexsupply/hookgen/hookabi"
	"github.com/indexsupply/hookgen/telemetry"
	"github.com/indexsupply/hookgen/ui"
	"github.com/indexsupply/hookgen/wctx"
	"github.com/indexsupply/hookgen/wslog"
	"github.com/indexsupply/hookgen/wstrings"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

func check(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	outDir  string
	section hookabi.Section
	format  bool
	files   []string
}

func main() {
	var (
		opts    options
		section string
		verbose bool
	)
	flag.StringVar(&opts.outDir, "o", "", "write one `dir`/<hook>_<section>.h per hook and section (default stdout)")
	flag.StringVar(&section, "s", "", "only generate `section` (hookStates, hookParameters or otxnParameters)")
	flag.BoolVar(&opts.format, "fmt", false, "print the formatted JSON document instead of code")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: hookgen [flags] file...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelWarn)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}
	slog.SetDefault(wslog.Logger(os.Stderr, logLevel))

	opts.section = hookabi.Section(section)
	opts.files = flag.Args()
	if len(opts.files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	check(run(context.Background(), os.Stdout, opts))
}

func run(ctx context.Context, w io.Writer, opts options) error {
	if opts.section != "" && !slices.Contains(hookabi.Sections, opts.section) {
		return fmt.Errorf("unknown section %q", opts.section)
	}
	if opts.outDir != "" && opts.format {
		return errors.New("-o and -fmt can't be combined")
	}
	var (
		eg      errgroup.Group
		results = make([]result, len(opts.files))
	)
	eg.SetLimit(runtime.NumCPU())
	for i, name := range opts.files {
		i, name := i, name
		eg.Go(func() error {
			res, err := load(ctx, name, opts.format)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for _, res := range results {
		if opts.format {
			if _, err := fmt.Fprintf(w, "%s\n", res.formatted); err != nil {
				return err
			}
			continue
		}
		if err := emit(ctx, w, opts, res.hooks); err != nil {
			return fmt.Errorf("%s: %w", res.name, err)
		}
	}
	return nil
}

type result struct {
	name      string
	formatted []byte
	hooks     []ui.HookView
}

func load(ctx context.Context, name string, format bool) (result, error) {
	res := result{name: name}
	js, err := readDocument(name)
	if err != nil {
		return res, err
	}
	if format {
		res.formatted, err = hookabi.Format(js)
		return res, err
	}
	m := telemetry.NewMetrics("cli")
	m.Start()
	defer m.Stop()
	res.hooks, err = ui.Generate(string(js))
	if err != nil {
		m.Failure(string(ui.Kind(err)))
		return res, err
	}
	slog.DebugContext(ctx, "generated", "file", name, "n", len(res.hooks))
	return res, nil
}

// Reads name and converts yaml documents to json
func readDocument(name string) ([]byte, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
		return json.Marshal(doc)
	default:
		return b, nil
	}
}

func emit(ctx context.Context, w io.Writer, opts options, hooks []ui.HookView) error {
	for _, hv := range hooks {
		ctx := wctx.WithHookID(ctx, hv.ID)
		if opts.outDir != "" {
			if err := wstrings.Safe(hv.ID); err != nil {
				return fmt.Errorf("hook id %q can't be a file name: %w", hv.ID, err)
			}
		}
		for _, sec := range ui.Sections(hv.Code) {
			if opts.section != "" && sec != opts.section {
				continue
			}
			code, _ := hv.Code.Get(sec)
			if opts.outDir == "" {
				if _, err := fmt.Fprintf(w, "// hook: %s (%s)\n%s", hv.ID, sec, code); err != nil {
					return err
				}
				continue
			}
			path := filepath.Join(opts.outDir, fmt.Sprintf("%s_%s.h", hv.ID, sec))
			if err := os.WriteFile(path, []byte(code), 0644); err != nil {
				return err
			}
			slog.DebugContext(wctx.WithSection(ctx, string(sec)), "wrote", "path", path)
		}
	}
	return nil
}
