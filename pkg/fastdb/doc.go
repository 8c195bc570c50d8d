// Package fastdb reads and writes compact, read-optimized vector feature
// databases.
//
// A database holds named layers. Each layer has a fixed schema of typed
// attribute fields, one geometry kind shared by all of its features, and a
// coordinate format. Features are written once with a Builder and read back
// many times, directly from the file bytes, through a Database.
//
// # Writing
//
//	b := fastdb.NewBuilder(fastdb.DefaultBuilderOptions())
//	b.BeginLayer("roads")
//	b.SetGeometryKind(fastdb.GeometryLineString)
//	b.SetCoordinateFormat(fastdb.CoordTx24)
//	b.SetExtent(fastdb.Bounds{MinX: 5, MinY: 45, MaxX: 11, MaxY: 48})
//	b.EnableBoundingBox(true)
//	class := b.AddField("class", fastdb.FieldU8, 0, 0)
//	name := b.AddField("name", fastdb.FieldString, 0, 0)
//
//	b.BeginFeature()
//	b.SetGeometryWKT("LINESTRING (6.1 46.2, 6.6 46.5)")
//	b.SetInt(class, 2)
//	b.SetString(name, "A1")
//	b.EndFeature()
//
//	b.EndLayer()
//	if err := b.SaveFile("roads.fdb"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Reading
//
//	db, err := fastdb.Open("roads.fdb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	roads := db.LayerByName("roads")
//	name := roads.FieldIndex("name")
//
//	c := roads.Cursor()
//	for c.Next() {
//	    s, _ := c.String(name)
//	    var g fastdb.GeometryCollector
//	    c.Geometry(&g)
//	    fmt.Println(s, g.Geometry())
//	}
//
// # Coordinate formats
//
// F32 and F64 store raw floating point pairs. Tx16, Tx24 and Tx32 store
// each axis as an unsigned integer scaled into the layer extent, so the
// extent must be set before features are written. Values outside the
// extent clamp to its edges.
//
// # Errors
//
// The builder never fails a build for misuse; it logs a warning through its
// zap logger and records it in Builder.Warnings. Warnings wrap ErrSchemaMisuse,
// ErrOutOfRange, ErrUnrepresentableGeometry, ErrNoLayer or ErrNoFeature and can
// be classified with errors.Is. Load and Open return ErrBadMagic, a
// CorruptError (matching ErrCorrupt) or an IOError (matching ErrIO).
//
// Read accessors return a second boolean result that is false when the
// feature or field index is out of range or the field type does not match.
package fastdb
