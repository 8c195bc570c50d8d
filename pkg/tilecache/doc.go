// Package tilecache selects and loads leveled fastdb tiles.
//
// A tile is a fastdb database file covering a rectangle at one detail
// level. Selector decides which registered tiles are needed to display a
// query rectangle, preferring detailed, recent tiles and falling back to
// coarser levels only where finer tiles leave gaps. Cache pairs a Selector
// with the tile files, opening them on demand (on the caller's goroutine or
// a background loader) and closing the least recently used ones on Shrink.
package tilecache
