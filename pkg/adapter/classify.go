package adapter

import (
	"errors"

	"github.com/leapstack-labs/sqlgate/pkg/result"
)

// InfoError is implemented by store errors that already know their
// classified form, such as PostgreSQL errors with alphanumeric SQLSTATE codes.
type InfoError interface {
	error
	ErrorInfo() result.ErrorInfo
}

// rawCoder matches errors exposing a numeric engine code, including core.StoreError.
type rawCoder interface {
	RawCode() int
}

// coder matches driver errors that expose their numeric code as Code(),
// as the modernc SQLite driver does.
type coder interface {
	Code() int
}

// Classify maps err to a classified failure. It reports false for faults,
// errors whose chain carries no recognizable code, which callers must
// propagate instead of masking.
func Classify(err error) (result.ErrorInfo, bool) {
	if err == nil {
		return result.ErrorInfo{}, false
	}

	var infoErr InfoError
	if errors.As(err, &infoErr) {
		return infoErr.ErrorInfo(), true
	}

	var rc rawCoder
	if errors.As(err, &rc) {
		return result.StoreError(rc.RawCode(), err.Error()), true
	}

	var c coder
	if errors.As(err, &c) {
		return result.StoreError(c.Code(), err.Error()), true
	}

	return result.ErrorInfo{}, false
}
