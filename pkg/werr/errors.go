package werr

import (
	"github.com/cockroachdb/errors"
)

const (
	// UnknownError means an unclassified failure
	UnknownError = iota + 1
	// SetupError means the backing file could not be opened, created or sized
	SetupError
	// MappingError means mmap or munmap failed
	MappingError
	// FlushError means a synchronous flush did not complete
	FlushError
	// ReclaimAdvisoryError means the kernel declined a page reclamation request
	ReclaimAdvisoryError
	// NotSupportedError means the platform lacks the requested primitive
	NotSupportedError
	// ConfigError means the benchmark configuration is invalid
	ConfigError
	// VerifyError means the backing file does not hold the expected pattern
	VerifyError
	// SinkError means a report could not be published
	SinkError
)

var (
	ErrSetup           = newBenchError("failed to set up backing file", SetupError, true)
	ErrMapping         = newBenchError("failed to map region", MappingError, true)
	ErrFlush           = newBenchError("failed to flush region", FlushError, true)
	ErrReclaimAdvisory = newBenchError("page reclamation request declined", ReclaimAdvisoryError, false)
	ErrNotSupported    = newBenchError("operation not supported on this platform", NotSupportedError, false)
	ErrConfig          = newBenchError("invalid configuration", ConfigError, true)
	ErrVerify          = newBenchError("backing file verification failed", VerifyError, true)
	ErrSink            = newBenchError("failed to publish report", SinkError, false)
)

type benchError struct {
	msg     string // msg describes the failing step.
	errCode int32  // errCode identifies the error class; Is compares by code.
	fatal   bool   // fatal errors abort the run, others are logged and tolerated.
	cause   error
}

func newBenchError(msg string, code int32, fatal bool) benchError {
	return benchError{
		msg:     msg,
		errCode: code,
		fatal:   fatal,
	}
}

func (e benchError) Code() int32 {
	return e.errCode
}

func (e benchError) Error() string {
	if e.cause == nil {
		return e.msg
	}

	return e.msg + ": " + e.cause.Error()
}

func (e benchError) Unwrap() error {
	return e.cause
}

func (e benchError) Is(err error) bool {
	if target, ok := err.(benchError); ok {
		return e.errCode == target.errCode
	}
	return false
}

func (e benchError) IsFatal() bool {
	return e.fatal
}

// WithCauseErr returns a copy of e that wraps cause, keeping e's code.
func (e benchError) WithCauseErr(cause error) error {
	return errors.WithStack(benchError{
		msg:     e.msg,
		errCode: e.errCode,
		fatal:   e.fatal,
		cause:   cause,
	})
}

// WithCauseErrMsg is WithCauseErr for a plain message.
func (e benchError) WithCauseErrMsg(msg string) error {
	return e.WithCauseErr(errors.New(msg))
}

// IsFatal reports whether err, or anything it wraps, is a fatal benchmark error.
// Errors that carry no classification are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var be benchError
	if errors.As(err, &be) {
		return be.fatal
	}

	return true
}
