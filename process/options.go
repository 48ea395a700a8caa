package process

import (
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/caffeineduck/pyexec/internal/logging"
	"github.com/caffeineduck/pyexec/internal/tracing"
)

// ServiceOption configures OSService and WasmService at creation time.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	log            *logrus.Entry
	tracer         trace.Tracer
	defaultTimeout time.Duration

	// WasmService only
	diskCache        bool
	cacheDir         string
	precompile       []string // module files to compile at startup
	memoryLimitPages uint32   // max memory pages (64KB each), 0 = wazero default (4GB)
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		log:    logging.Discard(logging.CompProcess),
		tracer: tracing.Noop(),
	}
}

// WithLogger sets the entry invocations are logged to.
func WithLogger(log *logrus.Entry) ServiceOption {
	return func(c *serviceConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTracer wraps every invocation in a span from tracer.
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(c *serviceConfig) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithDefaultTimeout bounds invocations whose SpawnOptions carry no timeout.
// Zero means no bound.
func WithDefaultTimeout(d time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.defaultTimeout = d
	}
}

// WithDiskCache enables a persistent compilation cache for WasmService.
// Optionally provide a custom directory; otherwise uses ~/.cache/pyexec or
// XDG_CACHE_HOME/pyexec.
//
//	process.NewWasmService(process.WithDiskCache())            // default dir
//	process.NewWasmService(process.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ServiceOption {
	return func(c *serviceConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given module files when the WasmService is
// created, moving the compilation cost to startup.
func WithPrecompile(files ...string) ServiceOption {
	return func(c *serviceConfig) {
		c.precompile = files
	}
}

// WithMemoryLimit sets the maximum memory available to WASM modules, in 64KB
// pages. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ServiceOption {
	return func(c *serviceConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

func (c serviceConfig) timeout(opts SpawnOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return c.defaultTimeout
}
