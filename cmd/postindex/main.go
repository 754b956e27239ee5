package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-postindex"
)

const shutdownTimeout = 10 * time.Second

var moduleBuilder = func(cfg postindex.Config) (*postindex.Module, error) {
	return postindex.New(cfg)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("postindex: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: postindex <serve|sync|verify> [flags]")
	}
	switch name, rest := args[0], args[1:]; name {
	case "serve":
		return runServe(rest, out)
	case "sync":
		return runSync(rest, out)
	case "verify":
		return runVerify(rest, out)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

type commonFlags struct {
	configPath string
	postsDir   string
	dbPath     string
	memory     bool
	logLevel   string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&f.postsDir, "posts", "", "Directory holding the markdown posts")
	fs.StringVar(&f.dbPath, "db", "", "Path to the SQLite index")
	fs.BoolVar(&f.memory, "memory", false, "Keep the index in memory instead of SQLite")
	fs.StringVar(&f.logLevel, "log-level", "", "Minimum log level (trace, debug, info, warn, error)")
	return f
}

func (f *commonFlags) config() (postindex.Config, error) {
	cfg, err := postindex.LoadConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	if f.postsDir != "" {
		cfg.Posts.Dir = f.postsDir
	}
	if f.dbPath != "" {
		cfg.Storage.Path = f.dbPath
	}
	if f.memory {
		cfg.Storage.Provider = postindex.StorageMemory
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, nil
}

func (f *commonFlags) build() (*postindex.Module, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	module, err := moduleBuilder(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap module: %w", err)
	}
	return module, nil
}

func runServe(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("postindex-serve", flag.ContinueOnError)
	common := registerCommon(fs)
	addr := fs.String("addr", "", "Listen address (defaults to the configured http.addr)")
	interval := fs.Duration("interval", 0, "Sync interval (defaults to the configured sync.interval)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.config()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *interval > 0 {
		cfg.Sync.Interval = *interval
	}

	module, err := moduleBuilder(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := module.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	handler, err := module.HTTPHandler()
	if err != nil {
		return fmt.Errorf("build http handler: %w", err)
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := module.Logger()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http.server.listening", "addr", cfg.HTTP.Addr, "base_path", cfg.HTTP.BasePath)
		fmt.Fprintf(out, "serving %s on %s\n", cfg.Posts.Dir, cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		logger.Info("http.server.shutdown")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runSync(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("postindex-sync", flag.ContinueOnError)
	common := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := common.build()
	if err != nil {
		return err
	}
	defer module.Close()

	result, err := module.Sync(context.Background())
	if result != nil {
		fmt.Fprintf(out, "created=%d updated=%d unchanged=%d deleted=%d skipped=%d failed=%d\n",
			len(result.Created), len(result.Updated), len(result.Unchanged),
			len(result.Deleted), len(result.Skipped), len(result.Failed))
		for _, issue := range result.Skipped {
			fmt.Fprintf(out, "skipped %s: %s\n", issue.Filename, issue.Reason)
		}
		for _, issue := range result.Failed {
			fmt.Fprintf(out, "failed %s: %s\n", issue.Filename, issue.Reason)
		}
	}
	if err != nil {
		return fmt.Errorf("execute sync command: %w", err)
	}
	if !result.OK() {
		return fmt.Errorf("sync finished with %d failed files", len(result.Failed))
	}
	return nil
}

func runVerify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("postindex-verify", flag.ContinueOnError)
	common := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	// Verification never touches the index.
	common.memory = true

	module, err := common.build()
	if err != nil {
		return err
	}
	defer module.Close()

	report, err := module.Verify(context.Background())
	for _, file := range report.Files {
		status := "ok"
		if !file.OK() {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%-4s %s\n", status, file.Filename)
		for _, problem := range file.Errors {
			fmt.Fprintf(out, "     error: %s\n", problem)
		}
		for _, warning := range file.Warnings {
			fmt.Fprintf(out, "     warning: %s\n", warning)
		}
	}
	if err != nil {
		return fmt.Errorf("verify %s: %w", strings.TrimSpace(report.Dir), err)
	}
	fmt.Fprintf(out, "%d posts verified\n", len(report.Files))
	return nil
}
