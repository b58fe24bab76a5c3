// Package feature turns frames into projected point features ready for a
// map overlay.
package feature

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-geomap/internal/frame"
)

// WeightScale selects how a row's weight maps to a marker radius.
type WeightScale string

const (
	// ScaleFixed draws every point at a fixed small multiple of the factor.
	ScaleFixed WeightScale = "fixed"
	// ScaleDirect draws every point at weight * factor.
	ScaleDirect WeightScale = "direct"
)

const (
	// DefaultFill is the translucent fill used for every feature.
	DefaultFill = "rgba(0, 153, 255, 0.4)"
	// DefaultStroke outlines every feature.
	DefaultStroke = "rgba(0, 102, 204, 0.8)"
	// LabelOffsetY places text labels above the point, in pixels.
	LabelOffsetY = -15

	baseRadius  = 3.0
	fixedFactor = 2.0
)

// Style is the per-feature visual descriptor.
type Style struct {
	Radius      float64 `json:"radius"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	Text        string  `json:"text,omitempty"`
	TextOffsetY int     `json:"textOffsetY,omitempty"`
}

// PointFeature is one projected point derived from one data row.
type PointFeature struct {
	// Position is in spherical mercator (EPSG:3857) meters.
	Position orb.Point
	// Source is the original lon/lat.
	Source orb.Point
	Time   *time.Time
	Label  string
	Weight *float64
	Style  Style
}

// Builder converts frames into features. The zero value uses fixed scaling
// without labels.
type Builder struct {
	Scale  WeightScale
	Factor float64
	Labels bool
}

// Result is the outcome of one build.
type Result struct {
	Features []PointFeature
	// Skipped counts rows dropped for a missing or invalid coordinate.
	Skipped int
}

// Build projects every row of f. Rows without a usable coordinate are
// skipped and counted; an unresolvable coordinate column is an error.
func (b Builder) Build(f frame.Frame) (Result, error) {
	if len(f.Fields) == 0 {
		return Result{Features: []PointFeature{}}, nil
	}

	cols, err := f.Resolve()
	if err != nil {
		return Result{}, err
	}

	n := len(f.Fields[cols.Lat].Values)
	res := Result{Features: make([]PointFeature, 0, n)}
	for i := 0; i < n; i++ {
		row := f.Row(cols, i)
		if !row.Valid {
			res.Skipped++
			continue
		}
		res.Features = append(res.Features, b.feature(row))
	}
	return res, nil
}

func (b Builder) feature(row frame.DataRow) PointFeature {
	src := orb.Point{row.Lon, row.Lat}
	pf := PointFeature{
		Position: Project(src),
		Source:   src,
		Time:     row.Time,
		Label:    row.Label,
		Weight:   row.Weight,
		Style: Style{
			Radius: b.radius(row.Weight),
			Fill:   DefaultFill,
			Stroke: DefaultStroke,
		},
	}
	if b.Labels && row.Label != "" {
		pf.Style.Text = row.Label
		pf.Style.TextOffsetY = LabelOffsetY
	}
	return pf
}

func (b Builder) radius(weight *float64) float64 {
	factor := b.Factor
	if factor <= 0 {
		factor = 1
	}
	switch b.Scale {
	case ScaleDirect:
		if weight == nil || *weight < 0 {
			return baseRadius
		}
		return *weight * factor
	default:
		return fixedFactor * factor
	}
}

// Project converts lon/lat to spherical mercator.
func Project(p orb.Point) orb.Point {
	return project.Point(p, project.WGS84.ToMercator)
}

// Unproject converts spherical mercator back to lon/lat.
func Unproject(p orb.Point) orb.Point {
	return project.Point(p, project.Mercator.ToWGS84)
}
