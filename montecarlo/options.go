package montecarlo

import (
	"log/slog"
	"time"

	guda "github.com/LynnColeArt/guda-mc"
)

// DefaultUnitsPerGroup is the group (block) size used when none is given.
const DefaultUnitsPerGroup = guda.DefaultBlockSize

type config struct {
	unitsPerGroup uint32
	timeout       time.Duration
	device        *guda.Context
	accept        Predicate
	scale         float64
	logger        *slog.Logger
}

// Option configures a call to Estimate.
type Option func(*config)

// WithUnitsPerGroup sets how many units are grouped into one block. It
// changes scheduling only; identities and results are unaffected.
func WithUnitsPerGroup(n uint32) Option {
	return func(c *config) {
		c.unitsPerGroup = n
	}
}

// WithTimeout bounds the wait on the completion barrier. Zero means no
// limit beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithDevice runs the estimate on the given runtime context instead of the
// package default.
func WithDevice(ctx *guda.Context) Option {
	return func(c *config) {
		c.device = ctx
	}
}

// WithPredicate replaces the acceptance region. scale multiplies the
// acceptance fraction; QuarterDisk covers π/4 of the unit square, so π
// needs scale 4.
func WithPredicate(accept Predicate, scale float64) Option {
	return func(c *config) {
		c.accept = accept
		c.scale = scale
	}
}

// WithLogger routes progress messages to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func newConfig(opts []Option) config {
	c := config{
		unitsPerGroup: DefaultUnitsPerGroup,
		accept:        QuarterDisk,
		scale:         PiScale,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.device == nil {
		c.device = guda.DefaultContext()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}
