package main

import (
	"fmt"
	"log"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

func main() {
	// Write a small harbor layer
	b := fastdb.NewBuilder(fastdb.DefaultBuilderOptions())
	b.BeginLayer("buoys")
	b.SetGeometryKind(fastdb.GeometryPoint)
	b.SetCoordinateFormat(fastdb.CoordTx24)
	b.SetExtent(fastdb.Bounds{MinX: -71.1, MinY: 42.3, MaxX: -71.0, MaxY: 42.4})
	name := b.AddField("name", fastdb.FieldString, 0, 0)

	b.BeginFeature()
	b.SetPoint(fastdb.Point{X: -71.05, Y: 42.35})
	b.SetString(name, "Nix's Mate")
	b.EndFeature()
	b.EndLayer()

	if err := b.SaveFile("harbor.fdb"); err != nil {
		log.Fatal(err)
	}

	// Read it back
	db, err := fastdb.Open("harbor.fdb")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	for _, layer := range db.Layers() {
		fmt.Printf("Layer: %s\n", layer.Name())
		fmt.Printf("Features: %d\n", layer.FeatureCount())

		extent := layer.Extent()
		fmt.Printf("Extent: [%.4f,%.4f] to [%.4f,%.4f]\n",
			extent.MinX, extent.MinY, extent.MaxX, extent.MaxY)
	}
}
