package dense

import "fmt"

// ArgError reports an invalid argument by its 1-based position in the
// classic argument order of the entry point. It corresponds to a negative
// info code.
type ArgError struct {
	Pos int
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("dense: argument %d has an illegal value", e.Pos)
}

// NotPositiveDefiniteError reports that the leading minor at the given
// 1-based index is not positive definite. It corresponds to a positive info
// code; panels before the index hold a valid partial factor.
type NotPositiveDefiniteError struct {
	Index int
}

func (e *NotPositiveDefiniteError) Error() string {
	return fmt.Sprintf("dense: leading minor of order %d is not positive definite", e.Index)
}

// infoError converts an info code into its typed error, nil for success.
func infoError(info int) error {
	switch {
	case info < 0:
		return &ArgError{Pos: -info}
	case info > 0:
		return &NotPositiveDefiniteError{Index: info}
	default:
		return nil
	}
}
