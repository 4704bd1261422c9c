package ajp

import (
	"testing"
)

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := LoggerOption(logger)

	var opts options
	opt(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestCheckOptions_DefaultLogger(t *testing.T) {
	var opts options
	checkOptions(&opts)

	if opts.logger == nil {
		t.Fatal("checkOptions did not set a default logger")
	}
	if opts.logger != defaultLogger() {
		t.Error("default logger is not the slog default")
	}
}

func TestCheckOptions_KeepsProvidedLogger(t *testing.T) {
	logger := &mockLogger{}
	opts := options{logger: logger}
	checkOptions(&opts)

	if opts.logger != logger {
		t.Error("checkOptions replaced the provided logger")
	}
}
