package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	inputPath  string
	outputPath string
	stdin      io.Reader
	stdout     io.Writer
	logOutput  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithInput sets the input file path. Empty means read from stdin.
func WithInput(path string) Option {
	return func(a *application) {
		a.inputPath = path
	}
}

// WithOutput sets the output file path. Empty means write to stdout.
func WithOutput(path string) Option {
	return func(a *application) {
		a.outputPath = path
	}
}

// WithStdio overrides the standard streams, for tests.
func WithStdio(stdin io.Reader, stdout io.Writer) Option {
	return func(a *application) {
		a.stdin = stdin
		a.stdout = stdout
	}
}

// WithLogOutput overrides the log destination, for tests. Logs go to
// stderr by default so stdout stays clean for the document.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
