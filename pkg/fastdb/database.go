package fastdb

import (
	"bytes"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/beetlebugorg/fastdb/internal/format"
)

// Database is a read-only view over an encoded fastdb buffer.
//
// The buffer is never copied; layers, features and geometry chunks alias it.
// A Database is safe for concurrent use by multiple goroutines.
type Database struct {
	buf     []byte
	layers  []*Layer
	byName  map[string]*Layer
	release func([]byte)
	closed  sync.Once
}

// Load parses the layer headers in buf and returns a database backed by it.
// release, if not nil, is called with buf once when the database is closed.
//
// Load validates the structure of every layer up front; geometry offsets and
// string tables are indexed lazily on first use.
func Load(buf []byte, release func([]byte)) (*Database, error) {
	if len(buf) < format.FileHeaderSize {
		return nil, &CorruptError{Layer: -1, Err: &format.ErrTruncated{Offset: 0, Need: format.FileHeaderSize, Len: len(buf)}}
	}
	if !bytes.Equal(buf[:format.MagicSize], format.Magic[:]) {
		return nil, ErrBadMagic
	}

	r := format.NewReader(buf, format.MagicSize)
	count := int(r.U32())

	db := &Database{
		buf:     buf,
		layers:  make([]*Layer, 0, min(count, 1024)),
		byName:  make(map[string]*Layer),
		release: release,
	}

	off := r.Offset()
	for i := 0; i < count; i++ {
		l, err := parseLayer(db, i, off)
		if err != nil {
			return nil, &CorruptError{Layer: i, Err: err}
		}
		db.layers = append(db.layers, l)
		if _, dup := db.byName[l.Name()]; !dup {
			db.byName[l.Name()] = l
		}
		off += int(l.header.TotalSize)
	}
	return db, nil
}

// Open reads the file at path and loads it.
func Open(path string) (*Database, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	db, err := Load(buf, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return db, nil
}

// Close hands the buffer to the release callback. Layers and features must
// not be used afterwards.
func (db *Database) Close() error {
	db.closed.Do(func() {
		if db.release != nil {
			db.release(db.buf)
		}
	})
	return nil
}

// Bytes returns the buffer backing the database.
func (db *Database) Bytes() []byte {
	return db.buf
}

// LayerCount returns the number of layers.
func (db *Database) LayerCount() int {
	return len(db.layers)
}

// Layer returns layer i, or nil when i is out of range.
func (db *Database) Layer(i int) *Layer {
	if i < 0 || i >= len(db.layers) {
		return nil
	}
	return db.layers[i]
}

// Layers returns all layers in file order.
func (db *Database) Layers() []*Layer {
	return db.layers
}

// LayerByName returns the first layer with the given name, or nil.
func (db *Database) LayerByName(name string) *Layer {
	return db.byName[name]
}

// Feature resolves a feature reference. It returns false when the
// reference names a layer or feature that does not exist.
func (db *Database) Feature(ref FeatureRef) (*Feature, bool) {
	l := db.Layer(int(ref.Layer))
	if l == nil {
		return nil, false
	}
	return l.Feature(int(ref.Feature))
}
