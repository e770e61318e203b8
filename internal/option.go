package internal

import "log/slog"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	logger  *slog.Logger
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the logger Run would build from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

func newApplication(opts []Option) *application {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
