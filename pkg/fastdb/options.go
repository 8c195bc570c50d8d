package fastdb

import (
	"go.uber.org/zap"
)

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Logger receives builder warnings and a summary line per finished
	// layer. Nil means zap.NewNop().
	Logger *zap.Logger

	// GeometryKind, CoordinateFormat, Extent, BoundingBoxes and
	// WideStringIndex are the settings the first layer starts with.
	// Builder setters update them for later layers as well.
	GeometryKind     GeometryKind
	CoordinateFormat CoordinateFormat
	Extent           Bounds
	BoundingBoxes    bool
	WideStringIndex  bool
}

// DefaultBuilderOptions returns options for point layers in float32
// longitude/latitude.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Logger:           zap.NewNop(),
		GeometryKind:     GeometryPoint,
		CoordinateFormat: CoordF32,
		Extent:           Bounds{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90},
	}
}

// layerSettings is the per-layer schema configuration.
type layerSettings struct {
	kind   GeometryKind
	format CoordinateFormat
	extent Bounds
	bboxes bool
	wide   bool
}

func (o BuilderOptions) settings() layerSettings {
	return layerSettings{
		kind:   o.GeometryKind,
		format: o.CoordinateFormat,
		extent: o.Extent,
		bboxes: o.BoundingBoxes,
		wide:   o.WideStringIndex,
	}
}

// effectiveBBoxes reports whether per-feature boxes are written. Only line
// and polygon geometries carry them.
func (s layerSettings) effectiveBBoxes() bool {
	return s.bboxes && s.kind.hasParts()
}
