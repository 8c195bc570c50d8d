package tilecache

import "github.com/pkg/errors"

var (
	// ErrLevelOutOfRange is returned when a tile is registered at a level
	// the selector was not configured for.
	ErrLevelOutOfRange = errors.New("tile level out of range")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("tile cache closed")
)
