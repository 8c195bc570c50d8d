package fastdb

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBadMagic is returned when a buffer does not start with the fastdb tag.
	ErrBadMagic = errors.New("fastdb: bad magic")

	// ErrCorrupt is matched by CorruptError.
	ErrCorrupt = errors.New("fastdb: corrupt database")

	// ErrIO is matched by IOError.
	ErrIO = errors.New("fastdb: i/o error")

	// ErrOutOfRange is reported for indices or values that do not fit.
	ErrOutOfRange = errors.New("fastdb: out of range")

	// ErrSchemaMisuse is reported when the builder is driven out of order,
	// for example a field write outside a feature or a schema change after
	// features were written.
	ErrSchemaMisuse = errors.New("fastdb: schema misuse")

	// ErrUnrepresentableGeometry is reported when input geometry does not
	// match the layer's geometry kind or cannot be parsed.
	ErrUnrepresentableGeometry = errors.New("fastdb: unrepresentable geometry")

	// ErrNoLayer is reported when an operation needs an open layer.
	ErrNoLayer = errors.New("fastdb: no open layer")

	// ErrNoFeature is reported when an operation needs an open feature.
	ErrNoFeature = errors.New("fastdb: no open feature")
)

// CorruptError describes structural damage found while loading.
type CorruptError struct {
	Layer int // Layer index, -1 for the file header
	Err   error
}

func (e *CorruptError) Error() string {
	if e.Layer < 0 {
		return fmt.Sprintf("fastdb: corrupt database header: %v", e.Err)
	}
	return fmt.Sprintf("fastdb: corrupt layer %d: %v", e.Layer, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// IOError wraps a failure to read or write a database file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("fastdb: %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
