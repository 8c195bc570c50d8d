package tilecache

import (
	"path/filepath"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

// manifestTile is one entry of a tile manifest. A tile is placed either by
// level and bounds or by web mercator coordinates [z, x, y].
type manifestTile struct {
	Path   string    `mapstructure:"path"`
	Level  int       `mapstructure:"level"`
	Time   float64   `mapstructure:"time"`
	Bounds []float64 `mapstructure:"bounds"`
	XYZ    []uint32  `mapstructure:"xyz"`
}

type manifest struct {
	Tiles []manifestTile `mapstructure:"tiles"`
}

// LoadManifest registers every tile listed in the manifest file at path and
// returns how many were registered. Any format viper reads (YAML, JSON,
// TOML) is accepted:
//
//	tiles:
//	  - path: world.fdb
//	    level: 0
//	    time: 1
//	    bounds: [-180, -90, 180, 90]
//	  - path: 4/8/5.fdb
//	    xyz: [4, 8, 5]
//	    time: 2
//
// Relative tile paths are resolved against the manifest's directory.
// Registration stops at the first invalid entry.
func (c *Cache) LoadManifest(path string) (int, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return 0, errors.Wrapf(err, "read manifest %s", path)
	}

	var m manifest
	if err := v.Unmarshal(&m); err != nil {
		return 0, errors.Wrapf(err, "decode manifest %s", path)
	}

	dir := filepath.Dir(path)
	for i, t := range m.Tiles {
		if t.Path == "" {
			return i, errors.Errorf("manifest %s: tile %d has no path", path, i)
		}
		tilePath := t.Path
		if !filepath.IsAbs(tilePath) {
			tilePath = filepath.Join(dir, tilePath)
		}

		var err error
		switch {
		case len(t.XYZ) == 3:
			tile := maptile.New(t.XYZ[1], t.XYZ[2], maptile.Zoom(t.XYZ[0]))
			_, err = c.RegisterMapTile(tilePath, tile, t.Time)
		case len(t.Bounds) == 4:
			b := fastdb.Bounds{MinX: t.Bounds[0], MinY: t.Bounds[1], MaxX: t.Bounds[2], MaxY: t.Bounds[3]}
			_, err = c.RegisterTile(tilePath, t.Level, t.Time, b)
		default:
			err = errors.New("needs bounds [minx, miny, maxx, maxy] or xyz [z, x, y]")
		}
		if err != nil {
			return i, errors.Wrapf(err, "manifest %s: tile %d", path, i)
		}
	}
	return len(m.Tiles), nil
}
