package chunkedpipe

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidMaxIdle is returned when a negative max-idle-per-class is supplied.
	ErrInvalidMaxIdle = errors.New("chunkedpipe: max idle per class must be >= 0")

	// ErrInvalidMinimumSize is returned when a non-positive minimum chunk size is supplied.
	ErrInvalidMinimumSize = errors.New("chunkedpipe: minimum chunk size must be > 0")

	// ErrInvalidCeiling is returned when the sizing ceiling is smaller than the minimum size.
	ErrInvalidCeiling = errors.New("chunkedpipe: sizing ceiling must be >= minimum chunk size")

	// ErrInvalidLowFillThreshold is returned when a negative low-fill threshold is supplied.
	ErrInvalidLowFillThreshold = errors.New("chunkedpipe: low fill threshold must be >= 0")
)

// DefaultMinimumChunkSize is the Pipe's default chunk allocation floor,
// matching the source implementation's default.
const DefaultMinimumChunkSize = 2048

// DefaultSizingCeiling bounds how large adaptive sizing will grow
// current_size under sustained full-chunk fills.
const DefaultSizingCeiling = 4 << 20 // 4 MiB

// DefaultLowFillThreshold is the number of consecutive low fills
// (commits under half a chunk's capacity) tolerated before current_size
// is halved.
const DefaultLowFillThreshold = 10

type poolConfig struct {
	maxIdlePerClass int
	logger          zerolog.Logger
}

// PoolOption configures a Pool constructed by NewPool.
type PoolOption func(*poolConfig) error

// WithMaxIdlePerClass bounds the number of free chunks a Pool retains per
// size class; excess returned chunks are discarded instead of recycled.
// n == 0 means unlimited (the default).
func WithMaxIdlePerClass(n int) PoolOption {
	return func(c *poolConfig) error {
		if n < 0 {
			return ErrInvalidMaxIdle
		}
		c.maxIdlePerClass = n
		return nil
	}
}

// WithPoolLogger attaches a structured logger for pool allocation and
// recycling events. The default is a no-op logger.
func WithPoolLogger(logger zerolog.Logger) PoolOption {
	return func(c *poolConfig) error {
		c.logger = logger
		return nil
	}
}

func newPoolConfig(opts []PoolOption) (poolConfig, error) {
	cfg := poolConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return poolConfig{}, err
		}
	}
	return cfg, nil
}

type pipeConfig struct {
	minimumSize      int
	ceiling          int
	lowFillThreshold int
	logger           zerolog.Logger
	onCommit         func()
}

// PipeOption configures a Pipe constructed by NewPipe.
type PipeOption func(*pipeConfig) error

// WithMinimumChunkSize sets the floor below which adaptive sizing will
// not shrink current_size. Default DefaultMinimumChunkSize.
func WithMinimumChunkSize(size int) PipeOption {
	return func(c *pipeConfig) error {
		if size <= 0 {
			return ErrInvalidMinimumSize
		}
		c.minimumSize = size
		return nil
	}
}

// WithSizingCeiling sets the upper bound for adaptive chunk-size growth.
// Default DefaultSizingCeiling.
func WithSizingCeiling(size int) PipeOption {
	return func(c *pipeConfig) error {
		c.ceiling = size
		return nil
	}
}

// WithLowFillThreshold sets how many consecutive low fills are tolerated
// before current_size is halved. Default DefaultLowFillThreshold.
func WithLowFillThreshold(n int) PipeOption {
	return func(c *pipeConfig) error {
		if n < 0 {
			return ErrInvalidLowFillThreshold
		}
		c.lowFillThreshold = n
		return nil
	}
}

// WithPipeLogger attaches a structured logger for adaptive-resize and
// EOF events; individual commits are not logged. The default is a no-op logger.
func WithPipeLogger(logger zerolog.Logger) PipeOption {
	return func(c *pipeConfig) error {
		c.logger = logger
		return nil
	}
}

// WithOnCommit registers a synchronous callback invoked after every
// BufferWritten call, so a caller can wake a waiting reader as soon as
// new data lands. The callback must not mutate the Pipe.
func WithOnCommit(fn func()) PipeOption {
	return func(c *pipeConfig) error {
		c.onCommit = fn
		return nil
	}
}

func newPipeConfig(opts []PipeOption) (pipeConfig, error) {
	cfg := pipeConfig{
		minimumSize:      DefaultMinimumChunkSize,
		ceiling:          DefaultSizingCeiling,
		lowFillThreshold: DefaultLowFillThreshold,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return pipeConfig{}, err
		}
	}
	if cfg.ceiling < cfg.minimumSize {
		return pipeConfig{}, fmt.Errorf("%w: ceiling %d, minimum %d", ErrInvalidCeiling, cfg.ceiling, cfg.minimumSize)
	}
	return cfg, nil
}
