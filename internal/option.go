package internal

import (
	"io"

	"github.com/starford/paperlink/internal/linker"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	notifier linker.Notifier
	logOut   io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithNotifier sets where user-facing linker notices go.
func WithNotifier(n linker.Notifier) Option {
	return func(a *application) {
		a.notifier = n
	}
}

// WithLogOutput sets the log destination (stdout by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
