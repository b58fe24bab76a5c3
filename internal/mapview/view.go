// Package mapview owns a map view and keeps its overlay layers in step with
// the latest data and options delivered by the host.
package mapview

import (
	"sort"
	"time"

	"github.com/paulmach/orb"
)

// Animation records a center transition requested on the view.
type Animation struct {
	Center   orb.Point
	Duration time.Duration
}

// View is a single map view: center, zoom, and an ordered set of layers.
type View struct {
	center  orb.Point
	zoom    float64
	maxZoom float64

	layers    []Layer
	controls  []Control
	animation *Animation
}

// NewView creates a view at a projected center.
func NewView(center orb.Point, zoom, maxZoom float64) *View {
	v := &View{center: center, maxZoom: maxZoom}
	v.SetZoom(zoom)
	return v
}

// Center returns the projected view center.
func (v *View) Center() orb.Point { return v.center }

// Zoom returns the current zoom level.
func (v *View) Zoom() float64 { return v.zoom }

// MaxZoom returns the zoom ceiling.
func (v *View) MaxZoom() float64 { return v.maxZoom }

// SetZoom applies a zoom level, clamped to [0, MaxZoom].
func (v *View) SetZoom(z float64) {
	if z < 0 {
		z = 0
	}
	if v.maxZoom > 0 && z > v.maxZoom {
		z = v.maxZoom
	}
	v.zoom = z
}

// SetMaxZoom changes the ceiling and re-clamps the current zoom.
func (v *View) SetMaxZoom(z float64) {
	v.maxZoom = z
	v.SetZoom(v.zoom)
}

// Animate moves the center over the given duration. The view settles on
// the target immediately; the animation is kept for the renderer.
func (v *View) Animate(center orb.Point, d time.Duration) {
	v.center = center
	v.animation = &Animation{Center: center, Duration: d}
}

// LastAnimation returns the most recent animation, or nil.
func (v *View) LastAnimation() *Animation { return v.animation }

// AddLayer attaches a layer. Attaching a layer that is already present is a no-op.
func (v *View) AddLayer(l Layer) {
	if l == nil || v.HasLayer(l) {
		return
	}
	v.layers = append(v.layers, l)
}

// RemoveLayer detaches a layer; absent or nil layers are ignored.
func (v *View) RemoveLayer(l Layer) {
	if l == nil {
		return
	}
	for i, existing := range v.layers {
		if existing == l {
			v.layers = append(v.layers[:i], v.layers[i+1:]...)
			return
		}
	}
}

// HasLayer reports whether l is attached.
func (v *View) HasLayer(l Layer) bool {
	for _, existing := range v.layers {
		if existing == l {
			return true
		}
	}
	return false
}

// Layers returns attached layers in draw order: by z-index, then attach order.
func (v *View) Layers() []Layer {
	out := make([]Layer, len(v.layers))
	copy(out, v.layers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZIndex() < out[j].ZIndex()
	})
	return out
}

// AddControl attaches an overlay widget.
func (v *View) AddControl(c Control) {
	v.controls = append(v.controls, c)
}

// Controls returns attached widgets.
func (v *View) Controls() []Control {
	return v.controls
}
