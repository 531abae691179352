package value

import "v.io/v23/verror"

// pkgPath identifies this package's errors to verror, following the
// registration convention used throughout v.io/x/ref's stream packages.
const pkgPath = "github.com/torao/asterisque-go/value"

func reg(id, msg string) verror.IDAction {
	return verror.Register(verror.ID(pkgPath+id), verror.NoRetry, msg)
}

var (
	// ErrCodec reports a malformed or out-of-range Value encoding.
	ErrCodec = reg(".errCodec", "malformed or out-of-range value encoding{:3}")

	// ErrDepthExceeded reports a Value whose nesting depth exceeds the
	// decoder's protective limit.
	ErrDepthExceeded = reg(".errDepthExceeded", "value nesting depth exceeds limit{:3}")
)

// Unsatisfied is returned by a TypeConversion or Codec step that does not
// know how to handle the given value or target type. It is not a failure:
// callers try the next registered extension before giving up (spec §4.2).
type Unsatisfied struct {
	Reason string
}

func (e *Unsatisfied) Error() string {
	if e.Reason == "" {
		return "value: unsatisfied conversion"
	}
	return "value: unsatisfied conversion: " + e.Reason
}

// IsUnsatisfied reports whether err is an Unsatisfied signal.
func IsUnsatisfied(err error) bool {
	_, ok := err.(*Unsatisfied)
	return ok
}
