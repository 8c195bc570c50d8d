package main

import (
	"context"
	"fmt"
	"log"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
	"github.com/beetlebugorg/fastdb/pkg/tilecache"
)

func main() {
	cache := tilecache.New(tilecache.DefaultOptions())
	defer cache.Close()

	// Tiles listed in tiles.yaml, paths relative to it
	n, err := cache.LoadManifest("tiles.yaml")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Registered tiles: %d\n", n)

	// Define viewport (Boston Harbor area)
	viewport := fastdb.Bounds{
		MinX: -71.1, MaxX: -71.0,
		MinY: 42.3, MaxY: 42.4,
	}

	res, err := cache.Take(context.Background(), 12, viewport)
	if err != nil {
		log.Fatal(err)
	}
	if res == nil {
		fmt.Println("No tiles cover the viewport")
		return
	}
	defer res.Release()

	// Coarse tiles first, detailed tiles last
	for _, tile := range res.Tiles {
		db := tile.Database()
		if db == nil {
			fmt.Printf("  level %d: %s (not loaded)\n", tile.Level, tile.Path)
			continue
		}
		fmt.Printf("  level %d: %s, %d layers\n", tile.Level, tile.Path, db.LayerCount())
	}
}
