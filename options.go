package boltfs

import (
	"time"

	"github.com/gostratum/core/logx"
)

// Options holds functional options for customizing manager behavior
type Options struct {
	logger       logx.Logger
	instrumenter *Instrumenter
	clock        func() time.Time
}

// Option is a functional option for configuring the Manager and Searcher
type Option func(*Options)

// WithLogger sets a custom core logx.Logger
func WithLogger(logger logx.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithInstrumenter sets a custom metrics/tracing instrumenter
func WithInstrumenter(inst *Instrumenter) Option {
	return func(opts *Options) {
		opts.instrumenter = inst
	}
}

// WithClock sets a custom time provider (useful for testing)
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.clock = clock
	}
}

// applyDefaults applies default values to unset options
func (opts *Options) applyDefaults() {
	if opts.logger == nil {
		opts.logger = logx.NewNoopLogger()
	}
	if opts.instrumenter == nil {
		opts.instrumenter = NewInstrumenter(nil, nil)
	}
	if opts.clock == nil {
		opts.clock = time.Now
	}
}

// GetLogger returns the configured logger
func (opts *Options) GetLogger() logx.Logger {
	if opts.logger == nil {
		return logx.NewNoopLogger()
	}
	return opts.logger
}

// GetInstrumenter returns the configured instrumenter
func (opts *Options) GetInstrumenter() *Instrumenter {
	if opts.instrumenter == nil {
		return NewInstrumenter(nil, nil)
	}
	return opts.instrumenter
}

// GetClock returns the configured clock function
func (opts *Options) GetClock() func() time.Time {
	if opts.clock == nil {
		return time.Now
	}
	return opts.clock
}

// BuildOptions applies the given options over defaults. Adapter
// packages use it to share the same option surface as the Manager.
func BuildOptions(options ...Option) *Options {
	opts := &Options{}
	for _, opt := range options {
		opt(opts)
	}
	opts.applyDefaults()
	return opts
}
