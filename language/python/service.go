package python

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caffeineduck/pyexec/internal/cache"
	"github.com/caffeineduck/pyexec/internal/logging"
	"github.com/caffeineduck/pyexec/process"
)

var (
	// ErrNotImplemented marks a capability an ExecutionService does not offer.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidModuleName is returned for names that are not dotted Python
	// identifiers.
	ErrInvalidModuleName = errors.New("invalid module name")
)

// ExecutionService runs one interpreter.
type ExecutionService interface {
	// InterpreterInformation reports the interpreter's metadata.
	InterpreterInformation(ctx context.Context) (InterpreterInformation, error)
	// ExecutablePath reports the path of the interpreter executable.
	ExecutablePath(ctx context.Context) (string, error)
	// IsModuleInstalled reports whether module can be imported.
	IsModuleInstalled(ctx context.Context, module string) (bool, error)
	// ExecutionInfo describes how args would be launched, without running anything.
	ExecutionInfo(args []string) ExecInfo
	// ExecutionDetails describes every launch variant for req.
	ExecutionDetails(req DetailsRequest) (ExecutionDetails, error)

	Exec(ctx context.Context, args []string, opts process.SpawnOptions) (process.ExecutionResult, error)
	ExecModule(ctx context.Context, module string, args []string, opts process.SpawnOptions) (process.ExecutionResult, error)
	ExecObservable(ctx context.Context, args []string, opts process.SpawnOptions) (*process.ObservableResult, error)
	ExecModuleObservable(ctx context.Context, module string, args []string, opts process.SpawnOptions) (*process.ObservableResult, error)
}

// DetailsRequest is the input of ExecutionDetails.
type DetailsRequest struct {
	Args       []string
	Options    process.SpawnOptions
	ModuleName string
}

// ExecutionDetails lists how each Exec variant would launch. The module
// variants are set only when the request names a module.
type ExecutionDetails struct {
	Exec                 ExecInfo
	ExecObservable       ExecInfo
	ExecModule           *ExecInfo
	ExecModuleObservable *ExecInfo
}

var moduleNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Service is the ExecutionService backed by a real process.Service.
type Service struct {
	env  Environment
	proc process.Service
	cfg  serviceConfig

	info      *cache.Cache[InterpreterInformation]
	installed *cache.Cache[bool]
	paths     *cache.Cache[string]
}

var _ ExecutionService = (*Service)(nil)

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	log      *logrus.Entry
	cacheTTL time.Duration
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		log:      logging.Discard(logging.CompPython),
		cacheTTL: cache.DefaultExpiration,
	}
}

// WithLogger sets the entry the service logs to.
func WithLogger(log *logrus.Entry) ServiceOption {
	return func(c *serviceConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCacheTTL sets how long interpreter metadata and module probes are
// remembered.
func WithCacheTTL(d time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.cacheTTL = d
	}
}

// NewService returns a Service running env through proc.
func NewService(env Environment, proc process.Service, opts ...ServiceOption) *Service {
	cfg := defaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		env:       env,
		proc:      proc,
		cfg:       cfg,
		info:      cache.New[InterpreterInformation]("interpreter_info", cfg.cacheTTL, cache.DefaultCleanupInterval, cfg.log),
		installed: cache.New[bool]("module_installed", cfg.cacheTTL, cache.DefaultCleanupInterval, cfg.log),
		paths:     cache.New[string]("executable_path", cfg.cacheTTL, cache.DefaultCleanupInterval, cfg.log),
	}
}

type interpreterInfoJSON struct {
	VersionInfo []any  `json:"versionInfo"`
	SysPrefix   string `json:"sysPrefix"`
	SysVersion  string `json:"sysVersion"`
	Is64Bit     bool   `json:"is64Bit"`
}

// InterpreterInformation runs an introspection script in the interpreter.
func (s *Service) InterpreterInformation(ctx context.Context) (InterpreterInformation, error) {
	if info, ok := s.info.Get(s.env.Path); ok {
		return info, nil
	}

	result, err := s.proc.Exec(ctx, s.env.Path, CodeArgs(interpreterInfoScript), process.SpawnOptions{})
	if err != nil {
		return InterpreterInformation{}, fmt.Errorf("get interpreter information: %w", err)
	}

	info, err := parseInterpreterInfo(s.env.Path, result.Stdout)
	if err != nil {
		return InterpreterInformation{}, fmt.Errorf("get interpreter information: %w", err)
	}

	s.cfg.log.WithField("path", s.env.Path).WithField("version", info.Version).Debug("interpreter information")
	s.info.Set(s.env.Path, info, 0)
	return info, nil
}

func parseInterpreterInfo(path, stdout string) (InterpreterInformation, error) {
	// Site customisations may print before the script; the JSON is the last line.
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])

	var raw interpreterInfoJSON
	if err := json.Unmarshal([]byte(last), &raw); err != nil {
		return InterpreterInformation{}, fmt.Errorf("parse interpreter output: %w", err)
	}

	parts := make([]string, len(raw.VersionInfo))
	for i, p := range raw.VersionInfo {
		parts[i] = fmt.Sprint(p)
	}
	version, err := ParseVersion(strings.Join(parts, "."))
	if err != nil {
		return InterpreterInformation{}, err
	}

	arch := ArchX86
	if raw.Is64Bit {
		arch = ArchX64
	}
	return InterpreterInformation{
		Path:         path,
		Version:      version,
		SysVersion:   raw.SysVersion,
		SysPrefix:    raw.SysPrefix,
		Architecture: arch,
	}, nil
}

// ExecutablePath returns the environment's path when it exists on disk and
// otherwise asks the interpreter for sys.executable.
func (s *Service) ExecutablePath(ctx context.Context) (string, error) {
	if _, err := os.Stat(s.env.Path); err == nil {
		return s.env.Path, nil
	}
	if path, ok := s.paths.Get(s.env.Path); ok {
		return path, nil
	}

	result, err := s.proc.Exec(ctx, s.env.Path, CodeArgs("import sys;print(sys.executable)"), process.SpawnOptions{ThrowOnStdErr: true})
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	path := strings.TrimSpace(result.Stdout)
	s.paths.Set(s.env.Path, path, 0)
	return path, nil
}

// IsModuleInstalled tries to import module. A failed import is reported as
// false with no error; failures to run the interpreter are returned.
func (s *Service) IsModuleInstalled(ctx context.Context, module string) (bool, error) {
	if !moduleNamePattern.MatchString(module) {
		return false, fmt.Errorf("%w: %q", ErrInvalidModuleName, module)
	}
	key := s.env.Path + "\x00" + module
	if installed, ok := s.installed.Get(key); ok {
		return installed, nil
	}

	_, err := s.proc.Exec(ctx, s.env.Path, CodeArgs("import "+module), process.SpawnOptions{ThrowOnStdErr: true})
	var exitErr *process.ExitError
	switch {
	case err == nil:
		s.installed.Set(key, true, 0)
		return true, nil
	case errors.Is(err, process.ErrStdErr), errors.As(err, &exitErr):
		s.cfg.log.WithField("module", module).WithError(err).Debug("module not importable")
		s.installed.Set(key, false, 0)
		return false, nil
	default:
		return false, fmt.Errorf("check module %s: %w", module, err)
	}
}

// ExecutionInfo describes running args with this interpreter.
func (s *Service) ExecutionInfo(args []string) ExecInfo {
	return BuildExecInfo(s.env.Path, args...)
}

// ExecutionDetails describes each launch variant for req.
func (s *Service) ExecutionDetails(req DetailsRequest) (ExecutionDetails, error) {
	details := ExecutionDetails{
		Exec:           s.ExecutionInfo(req.Args),
		ExecObservable: s.ExecutionInfo(req.Args),
	}
	if req.ModuleName != "" {
		module := s.ExecutionInfo(ModuleArgs(req.ModuleName, req.Args))
		observable := module
		observable.Args = append([]string(nil), module.Args...)
		details.ExecModule = &module
		details.ExecModuleObservable = &observable
	}
	return details, nil
}

// Exec runs the interpreter with args.
func (s *Service) Exec(ctx context.Context, args []string, opts process.SpawnOptions) (process.ExecutionResult, error) {
	return s.proc.Exec(ctx, s.env.Path, args, opts)
}

// ExecModule runs module with args.
func (s *Service) ExecModule(ctx context.Context, module string, args []string, opts process.SpawnOptions) (process.ExecutionResult, error) {
	return s.proc.Exec(ctx, s.env.Path, ModuleArgs(module, args), opts)
}

// ExecObservable runs the interpreter with args and streams its output.
func (s *Service) ExecObservable(ctx context.Context, args []string, opts process.SpawnOptions) (*process.ObservableResult, error) {
	return s.proc.ExecObservable(ctx, s.env.Path, args, opts)
}

// ExecModuleObservable runs module with args and streams its output.
func (s *Service) ExecModuleObservable(ctx context.Context, module string, args []string, opts process.SpawnOptions) (*process.ObservableResult, error) {
	return s.proc.ExecObservable(ctx, s.env.Path, ModuleArgs(module, args), opts)
}
