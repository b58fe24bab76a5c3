package mapview

import "github.com/joeblew999/plat-geomap/internal/feature"

// LayerKind identifies a layer type.
type LayerKind string

const (
	KindBaseTile    LayerKind = "base"
	KindTileOverlay LayerKind = "tile"
	KindMarkers     LayerKind = "markers"
	KindHeat        LayerKind = "heat"
)

// Stacking order; higher draws above lower.
const (
	zBase    = 0
	zTile    = 1
	zOverlay = 2
)

// Layer is anything attachable to a View.
type Layer interface {
	Kind() LayerKind
	ZIndex() int
}

// TileLayer draws raster tiles from an XYZ URL template.
type TileLayer struct {
	URL  string
	base bool
}

func (l *TileLayer) Kind() LayerKind {
	if l.base {
		return KindBaseTile
	}
	return KindTileOverlay
}

func (l *TileLayer) ZIndex() int {
	if l.base {
		return zBase
	}
	return zTile
}

// MarkerStyle is the circle style shared by every marker in a layer.
type MarkerStyle struct {
	Radius      float64 `json:"radius"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// MarkerLayer draws each feature as a circle.
type MarkerLayer struct {
	Features []feature.PointFeature
	style    MarkerStyle
}

func (l *MarkerLayer) Kind() LayerKind { return KindMarkers }
func (l *MarkerLayer) ZIndex() int     { return zOverlay }

// Style returns the current marker style.
func (l *MarkerLayer) Style() MarkerStyle { return l.style }

// SetStyle replaces the marker style.
func (l *MarkerLayer) SetStyle(s MarkerStyle) { l.style = s }

// HeatLayer draws features as a density surface.
type HeatLayer struct {
	Features []feature.PointFeature
	radius   int
	blur     int
	opacity  float64
}

func (l *HeatLayer) Kind() LayerKind { return KindHeat }
func (l *HeatLayer) ZIndex() int     { return zOverlay }

func (l *HeatLayer) Radius() int          { return l.radius }
func (l *HeatLayer) Blur() int            { return l.blur }
func (l *HeatLayer) Opacity() float64     { return l.opacity }
func (l *HeatLayer) SetRadius(r int)      { l.radius = r }
func (l *HeatLayer) SetBlur(b int)        { l.blur = b }
func (l *HeatLayer) SetOpacity(o float64) { l.opacity = o }
