package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caffeineduck/pyexec/internal/cache"
	"github.com/caffeineduck/pyexec/internal/logging"
	"github.com/caffeineduck/pyexec/internal/tracing"
	"github.com/caffeineduck/pyexec/language/python"
	"github.com/caffeineduck/pyexec/process"
)

const (
	backendOS   = "os"
	backendWasm = "wasm"
)

var (
	cfgFile string
	cfg     config

	// cfgErr is set by initConfig and reported before any command runs.
	cfgErr error
)

type config struct {
	Python   string        `mapstructure:"python"`
	Backend  string        `mapstructure:"backend"`
	Timeout  time.Duration `mapstructure:"timeout"`
	LogLevel string        `mapstructure:"log_level"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Trace    bool          `mapstructure:"trace"`
	Memory   string        `mapstructure:"memory"`
	NoCache  bool          `mapstructure:"no_cache"`
}

func defaultConfig() config {
	return config{
		Python:   "python3",
		Backend:  backendOS,
		Timeout:  30 * time.Second,
		LogLevel: "warn",
		CacheTTL: cache.DefaultExpiration,
		Memory:   "256mb",
	}
}

var rootCmd = &cobra.Command{
	Use:   "pyexec",
	Short: "Run Python through a pluggable process backend",
	Long: `pyexec - Inspect and run a Python interpreter.

The interpreter is launched either as a native process (--backend os) or as a
WASI module under wazero (--backend wasm, with --python pointing at a .wasm
build of CPython).

Settings are read from ~/.config/pyexec/config.yaml unless --config is given.
Flags override the file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfgErr
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := defaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/pyexec/config.yaml)")
	flags.String("python", defaults.Python, "Interpreter path, or a .wasm module with --backend wasm")
	flags.String("backend", defaults.Backend, "Process backend: os, wasm")
	flags.Duration("timeout", defaults.Timeout, "Execution timeout (0 disables)")
	flags.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	flags.Duration("cache-ttl", defaults.CacheTTL, "How long interpreter metadata and module checks are cached (0 keeps them for the run)")
	flags.Bool("trace", defaults.Trace, "Write spans to stderr")
	flags.String("memory", defaults.Memory, "WASM memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	flags.Bool("no-cache", defaults.NoCache, "Disable the WASM compilation cache")
}

// initConfig resolves cfg from defaults, the config file and flags, in
// increasing order of precedence. A fresh viper instance is used per run.
func initConfig() {
	v := viper.New()

	defaults := defaultConfig()
	v.SetDefault("python", defaults.Python)
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("cache_ttl", defaults.CacheTTL)
	v.SetDefault("trace", defaults.Trace)
	v.SetDefault("memory", defaults.Memory)
	v.SetDefault("no_cache", defaults.NoCache)

	flags := rootCmd.PersistentFlags()
	_ = v.BindPFlag("python", flags.Lookup("python"))
	_ = v.BindPFlag("backend", flags.Lookup("backend"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("cache_ttl", flags.Lookup("cache-ttl"))
	_ = v.BindPFlag("trace", flags.Lookup("trace"))
	_ = v.BindPFlag("memory", flags.Lookup("memory"))
	_ = v.BindPFlag("no_cache", flags.Lookup("no-cache"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "pyexec"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	cfg = defaults
	cfgErr = nil
	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicit --config must be readable.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cfgErr = fmt.Errorf("read config: %w", err)
			return
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		cfgErr = fmt.Errorf("decode config %s: %w", v.ConfigFileUsed(), err)
	}
}

// app holds what a command needs to talk to the interpreter.
type app struct {
	log    *logrus.Logger
	tracer *tracing.Provider
	proc   process.Service
	python *python.Service
	close  func() error
}

func newApp(cfg config, stderr io.Writer) (*app, error) {
	logger, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		return nil, err
	}

	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Trace,
		Writer:      stderr,
		ServiceName: "pyexec",
	})
	if err != nil {
		return nil, err
	}

	procOpts := []process.ServiceOption{
		process.WithLogger(logging.For(logger, logging.CompProcess)),
		process.WithTracer(tp.Tracer()),
		process.WithDefaultTimeout(cfg.Timeout),
	}

	a := &app{log: logger, tracer: tp, close: func() error { return nil }}
	switch strings.ToLower(cfg.Backend) {
	case backendOS:
		a.proc = process.NewOSService(procOpts...)
	case backendWasm:
		if !cfg.NoCache {
			procOpts = append(procOpts, process.WithDiskCache())
		}
		if pages := parseMemoryLimit(cfg.Memory); pages > 0 {
			procOpts = append(procOpts, process.WithMemoryLimit(pages))
		}
		procOpts = append(procOpts, process.WithPrecompile(cfg.Python))
		svc, err := process.NewWasmService(procOpts...)
		if err != nil {
			_ = tp.Shutdown(context.Background())
			return nil, err
		}
		a.proc = svc
		a.close = svc.Close
	default:
		_ = tp.Shutdown(context.Background())
		return nil, fmt.Errorf("unknown backend %q: use os or wasm", cfg.Backend)
	}

	a.python = python.NewService(
		python.Environment{Path: cfg.Python},
		a.proc,
		python.WithLogger(logging.For(logger, logging.CompPython)),
		python.WithCacheTTL(cfg.CacheTTL),
	)

	logging.For(logger, logging.CompCLI).
		WithField("python", cfg.Python).
		WithField("backend", cfg.Backend).
		Debug("interpreter configured")
	return a, nil
}

func (a *app) Close() error {
	return errors.Join(a.close(), a.tracer.Shutdown(context.Background()))
}

// withApp builds an app for cmd, runs fn and releases the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return process.MemoryLimit1MB
	case "16mb":
		return process.MemoryLimit16MB
	case "64mb":
		return process.MemoryLimit64MB
	case "256mb":
		return process.MemoryLimit256MB
	case "1gb":
		return process.MemoryLimit1GB
	default:
		return 0 // use default
	}
}
