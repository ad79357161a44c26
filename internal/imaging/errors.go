package imaging

import "fmt"

// InvalidImageError reports an input that cannot be scored: bad channel
// count, non-finite samples, or dimensions below one block.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string {
	return "invalid image: " + e.Reason
}

func invalidf(format string, args ...interface{}) error {
	return &InvalidImageError{Reason: fmt.Sprintf(format, args...)}
}
