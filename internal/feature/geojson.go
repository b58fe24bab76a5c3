package feature

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports features as GeoJSON in lon/lat, carrying the
// attributes and style as properties.
func FeatureCollection(features []PointFeature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, pf := range features {
		f := geojson.NewFeature(pf.Source)
		if pf.Time != nil {
			f.Properties["time"] = pf.Time.Format(time.RFC3339)
		}
		if pf.Label != "" {
			f.Properties["label"] = pf.Label
		}
		if pf.Weight != nil {
			f.Properties["weight"] = *pf.Weight
		}
		f.Properties["radius"] = pf.Style.Radius
		f.Properties["fill"] = pf.Style.Fill
		if pf.Style.Text != "" {
			f.Properties["text"] = pf.Style.Text
		}
		fc.Append(f)
	}
	return fc
}
