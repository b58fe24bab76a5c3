// Package tiles renders a panel's point features as Mapbox Vector Tiles so
// browser renderers can draw large frames without receiving every row.
package tiles

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-geomap/internal/feature"
)

// MaxZoom is the deepest zoom tiles are rendered for.
const MaxZoom = 22

// LayerName is the MVT layer holding panel points.
const LayerName = "points"

// ErrTileOutOfRange is returned for tile coordinates outside the zoom's grid.
var ErrTileOutOfRange = errors.New("tile out of range")

// Tile is one rendered tile. Data is gzip-compressed protobuf; empty tiles
// have no data.
type Tile struct {
	Key      maptile.Tile
	Data     []byte
	Features int
}

// Empty reports whether the tile has no features.
func (t Tile) Empty() bool { return t.Features == 0 }

// Render builds the vector tile z/x/y from features. Features whose source
// coordinate lies within buffer pixels of the tile edge are included so
// markers and heat blobs are not cut at tile seams.
func Render(features []feature.PointFeature, z, x, y uint32, buffer float64) (Tile, error) {
	if z > MaxZoom {
		return Tile{}, fmt.Errorf("%w: zoom %d above %d", ErrTileOutOfRange, z, MaxZoom)
	}
	if n := uint32(1) << z; x >= n || y >= n {
		return Tile{}, fmt.Errorf("%w: %d/%d/%d", ErrTileOutOfRange, z, x, y)
	}

	key := maptile.New(x, y, maptile.Zoom(z))
	bound := bufferedBound(key, buffer)

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if !bound.Contains(f.Source) {
			continue
		}
		gf := geojson.NewFeature(orb.Point{f.Source.Lon(), f.Source.Lat()})
		gf.Properties["radius"] = f.Style.Radius
		if f.Weight != nil {
			gf.Properties["weight"] = *f.Weight
		}
		if f.Label != "" {
			gf.Properties["label"] = f.Label
		}
		if f.Time != nil {
			gf.Properties["time"] = f.Time.UnixMilli()
		}
		fc.Append(gf)
	}

	tile := Tile{Key: key, Features: len(fc.Features)}
	if tile.Empty() {
		return tile, nil
	}

	layer := mvt.NewLayer(LayerName, fc)
	layer.Clip(bound)
	layer.ProjectToTile(key)

	data, err := mvt.MarshalGzipped(mvt.Layers{layer})
	if err != nil {
		return Tile{}, fmt.Errorf("encoding tile %d/%d/%d: %w", z, x, y, err)
	}
	tile.Data = data
	return tile, nil
}

// Bounds returns the lon/lat bound of the features, or false when there are none.
func Bounds(features []feature.PointFeature) (orb.Bound, bool) {
	if len(features) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, len(features))
	for i, f := range features {
		mp[i] = f.Source
	}
	return mp.Bound(), true
}

// Cover lists the tiles at zoom z that contain at least one feature.
func Cover(features []feature.PointFeature, z uint32) []maptile.Tile {
	seen := make(map[maptile.Tile]struct{})
	var result []maptile.Tile
	for _, f := range features {
		t := maptile.At(f.Source, maptile.Zoom(z))
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result
}

// bufferedBound widens the tile bound by buffer pixels of a 256px tile.
func bufferedBound(t maptile.Tile, buffer float64) orb.Bound {
	b := t.Bound()
	if buffer <= 0 {
		return b
	}
	dx := (b.Max.Lon() - b.Min.Lon()) * buffer / 256
	dy := (b.Max.Lat() - b.Min.Lat()) * buffer / 256
	return orb.Bound{
		Min: orb.Point{b.Min.Lon() - dx, b.Min.Lat() - dy},
		Max: orb.Point{b.Max.Lon() + dx, b.Max.Lat() + dy},
	}
}
