package ajp

// options holds the configuration shared by Message and Pool.
type options struct {
	logger Logger
}

// Option is a function that configures packet buffer options.
type Option func(*options)

// LoggerOption returns an Option that sets the diagnostics logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// checkOptions fills in defaults for unset options.
func checkOptions(opts *options) {
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}
