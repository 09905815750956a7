package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/indexsupply/hookgen/config"
	"github.com/indexsupply/hookgen/gencache"
	"github.com/indexsupply/hookgen/kv"
	"github.com/indexsupply/hookgen/telemetry"
	"github.com/indexsupply/hookgen/web"
	"github.com/indexsupply/hookgen/wctx"
	"github.com/indexsupply/hookgen/wos"
	"github.com/indexsupply/hookgen/wslog"
)

func check(err error) {
	if err != nil {
		fmt.Printf("%s\n", err)
		os.Exit(1)
	}
}

func main() {
	var (
		ctx   = context.Background()
		cfile string

		listen  string
		driver  string
		version bool
		verbose bool
	)
	flag.StringVar(&cfile, "config", "", "json config file")
	flag.StringVar(&listen, "l", "", "listen address (default localhost:8547)")
	flag.StringVar(&driver, "store", "", "input store: sqlite, pg or memory (default sqlite)")
	flag.BoolVar(&version, "version", false, "version")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelInfo)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}
	logger := wslog.Logger(os.Stdout, logLevel)
	slog.SetDefault(logger.With("v", Commit))
	ctx = wctx.WithVersion(ctx, Commit)

	if version {
		fmt.Printf("v%s %s\n", Version, Commit)
		os.Exit(0)
	}

	conf, err := config.Load(cfile)
	check(err)
	if listen != "" {
		conf.Listen = listen
	}
	if driver != "" {
		conf.Store.Driver = driver
		if driver == "pg" && conf.Store.PGURL == "" {
			conf.Store.PGURL = "$DATABASE_URL"
		}
		check(config.ValidateFix(&conf))
	}

	tracingCfg := telemetry.TracingConfigFromEnv()
	if tracingCfg.ServiceVersion == "" {
		tracingCfg.ServiceVersion = Commit
	}
	shutdownTracing, err := telemetry.InitTracing(ctx, tracingCfg)
	check(err)
	defer shutdownTracing(ctx)

	dsn, err := wos.Getenv(conf.Store.DSN())
	check(err)
	store, err := kv.Open(ctx, conf.Store.Driver, dsn)
	check(err)
	defer store.Close()

	wh, err := web.New(ctx, store, gencache.New(conf.CacheSize), conf.Dashboard)
	check(err)

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           wh.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	slog.InfoContext(ctx, "listening", "addr", conf.Listen, "store", conf.Store.Driver)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		check(err)
	}
}

// Set using: go build -ldflags="-X main.Version=XXX"
var (
	Version string
	Commit  = func() string {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return "ernobuildinfo"
		}
		var (
			revision = ""
			modified bool
		)
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value[:4]
			case "vcs.modified":
				modified = s.Value == "true"
			}
		}
		if !modified {
			return revision
		}
		return revision + "-"
	}()
)
