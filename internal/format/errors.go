package format

import (
	"fmt"
)

// ErrTruncated indicates a read past the end of the available bytes.
type ErrTruncated struct {
	Offset int // Position of the failed read
	Need   int // Bytes requested
	Len    int // Bytes available in the buffer
}

func (e *ErrTruncated) Error() string {
	return fmt.Sprintf("truncated data: need %d bytes at offset %d, buffer holds %d",
		e.Need, e.Offset, e.Len)
}

// ErrInvalidHeader indicates a layer header whose values cannot describe a
// valid layer.
type ErrInvalidHeader struct {
	Layer  string
	Reason string
}

func (e *ErrInvalidHeader) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("invalid layer header (%s): %s", e.Layer, e.Reason)
	}
	return fmt.Sprintf("invalid layer header: %s", e.Reason)
}
