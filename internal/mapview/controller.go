package mapview

import (
	"errors"
	"log"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geomap/internal/feature"
	"github.com/joeblew999/plat-geomap/internal/frame"
)

// AnimationDuration is how long the view takes to fly to newly arrived data.
const AnimationDuration = 2 * time.Second

// Mode is the overlay shown on the map. The host exposes it as two flags;
// internally only one overlay can be active.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeMarkers Mode = "markers"
	ModeHeat    Mode = "heat"
)

// Props is what the host delivers on every render.
type Props struct {
	Options ViewOptions
	Data    frame.Frame
}

// Trigger names a reconciliation step that ran during Update.
type Trigger string

const (
	TriggerData         Trigger = "data"
	TriggerAnimate      Trigger = "animate"
	TriggerMode         Trigger = "mode"
	TriggerTile         Trigger = "tile"
	TriggerZoom         Trigger = "zoom"
	TriggerMaxZoom      Trigger = "max_zoom"
	TriggerHeatStyle    Trigger = "heat_style"
	TriggerMarkerStyle  Trigger = "marker_style"
	TriggerFeatureStyle Trigger = "feature_style"
)

// Changes lists the triggers that fired, in order.
type Changes []Trigger

// Has reports whether t fired.
func (c Changes) Has(t Trigger) bool {
	for _, got := range c {
		if got == t {
			return true
		}
	}
	return false
}

// Controller owns one view and its overlays. It is not safe for concurrent
// use; the host serializes deliveries.
type Controller struct {
	view    *View
	base    *TileLayer
	tile    *TileLayer
	markers *MarkerLayer
	heat    *HeatLayer
	control *LayerSwitch

	props   Props
	mode    Mode
	located bool
	result  feature.Result
	heatOK  HeatParams

	onOptionsChange func(ViewOptions)
}

// New builds the view from the first delivery. The returned controller is
// always usable; a non-nil error reports recoverable conditions
// (frame.ErrMissingColumn, ErrInvalidNumericOption) that were replaced by
// fallbacks.
func New(props Props, onOptionsChange func(ViewOptions)) (*Controller, error) {
	c := &Controller{onOptionsChange: onOptionsChange}
	opts := props.Options
	var errs []error

	heat, err := opts.HeatParams()
	if err != nil {
		errs = append(errs, err)
		heat, _ = DefaultOptions().HeatParams()
	}
	c.heatOK = heat

	res, err := opts.Builder().Build(props.Data)
	if err != nil {
		errs = append(errs, err)
		res = feature.Result{Features: []feature.PointFeature{}}
		props.Data = frame.Frame{Revision: props.Data.Revision}
	}
	c.result = res

	center := feature.Project(orb.Point{opts.CenterLon, opts.CenterLat})
	if opts.CenterLon == 0 && opts.CenterLat == 0 {
		center = feature.Project(orb.Point{DefaultLon, DefaultLat})
	}
	if row, err := props.Data.FirstLocated(); err == nil {
		center = feature.Project(orb.Point{row.Lon, row.Lat})
		c.located = true
	}

	maxZoom := opts.MaxZoom
	if maxZoom <= 0 {
		maxZoom = DefaultMaxZoom
	}
	c.view = NewView(center, opts.ZoomLevel, maxZoom)

	c.base = &TileLayer{URL: BaseTileURL, base: true}
	c.view.AddLayer(c.base)
	if opts.TileURL != "" {
		c.tile = &TileLayer{URL: opts.TileURL}
		c.view.AddLayer(c.tile)
	}

	c.mode = modeOf(opts, ModeNone)
	c.attach(opts)

	c.control = newLayerSwitch(c.mode, c.selectMode)
	c.view.AddControl(c.control)

	c.props = props
	return c, errors.Join(errs...)
}

// Update reconciles the view against a new delivery. Each trigger compares
// the new props with the previous ones and applies the smallest change.
func (c *Controller) Update(props Props) (Changes, error) {
	prev := c.props
	cur := props
	var changes Changes
	var errs []error

	mode := resolveMode(prev.Options, cur.Options, c.mode)
	rebuilt := false

	heatChanged := prev.Options.HeatRadius != cur.Options.HeatRadius ||
		prev.Options.HeatBlur != cur.Options.HeatBlur ||
		prev.Options.HeatOpacity != cur.Options.HeatOpacity
	if heatChanged {
		heat, err := cur.Options.HeatParams()
		if err != nil {
			// The heat layer keeps its last good values.
			errs = append(errs, err)
			heatChanged = false
		} else {
			c.heatOK = heat
		}
	}

	featureStyleChanged := prev.Options.WeightScale != cur.Options.WeightScale ||
		prev.Options.ShowLabels != cur.Options.ShowLabels

	if cur.Data.Revision != prev.Data.Revision {
		res, err := cur.Options.Builder().Build(cur.Data)
		if err != nil {
			// Keep the last frame and layers that rendered.
			errs = append(errs, err)
			cur.Data = prev.Data
		} else {
			_, locErr := cur.Data.FirstLocated()
			located := locErr == nil
			if !c.located && located {
				row, _ := cur.Data.FirstLocated()
				c.view.Animate(feature.Project(orb.Point{row.Lon, row.Lat}), AnimationDuration)
				changes = append(changes, TriggerAnimate)
			}
			c.located = located
			c.result = res
			c.mode = mode
			c.reattach(cur.Options)
			rebuilt = true
			changes = append(changes, TriggerData)
		}
	}

	if !rebuilt && (mode != c.mode || featureStyleChanged) {
		res, err := cur.Options.Builder().Build(cur.Data)
		if err != nil {
			errs = append(errs, err)
		} else {
			c.result = res
		}
		if mode != c.mode {
			changes = append(changes, TriggerMode)
		}
		if featureStyleChanged {
			changes = append(changes, TriggerFeatureStyle)
		}
		c.mode = mode
		c.reattach(cur.Options)
		rebuilt = true
	}

	if prev.Options.TileURL != cur.Options.TileURL {
		c.view.RemoveLayer(c.tile)
		c.tile = nil
		if cur.Options.TileURL != "" {
			c.tile = &TileLayer{URL: cur.Options.TileURL}
			c.view.AddLayer(c.tile)
		}
		changes = append(changes, TriggerTile)
	}

	if prev.Options.MaxZoom != cur.Options.MaxZoom && cur.Options.MaxZoom > 0 {
		c.view.SetMaxZoom(cur.Options.MaxZoom)
		// Re-clamp from the configured zoom so raising the ceiling restores it.
		c.view.SetZoom(cur.Options.ZoomLevel)
		changes = append(changes, TriggerMaxZoom)
	}

	if prev.Options.ZoomLevel != cur.Options.ZoomLevel {
		c.view.SetZoom(cur.Options.ZoomLevel)
		changes = append(changes, TriggerZoom)
	}

	if heatChanged && c.heat != nil && !rebuilt {
		c.heat.SetRadius(c.heatOK.Radius)
		c.heat.SetBlur(c.heatOK.Blur)
		c.heat.SetOpacity(c.heatOK.Opacity)
		changes = append(changes, TriggerHeatStyle)
	}

	if prev.Options.MarkerRadius != cur.Options.MarkerRadius ||
		prev.Options.MarkerColor != cur.Options.MarkerColor ||
		prev.Options.MarkerStroke != cur.Options.MarkerStroke {
		if c.markers != nil && !rebuilt {
			c.view.RemoveLayer(c.markers)
			c.markers.SetStyle(cur.Options.MarkerStyle())
			c.view.AddLayer(c.markers)
			changes = append(changes, TriggerMarkerStyle)
		}
	}

	c.control.sync(c.mode)
	c.props = cur

	if len(changes) > 0 {
		log.Printf("[mapview] reconciled revision=%d mode=%s changes=%v", cur.Data.Revision, c.mode, changes)
	}
	return changes, errors.Join(errs...)
}

// reattach detaches both overlays and attaches a fresh one for the current mode.
func (c *Controller) reattach(opts ViewOptions) {
	c.view.RemoveLayer(c.markers)
	c.view.RemoveLayer(c.heat)
	c.markers, c.heat = nil, nil
	c.attach(opts)
}

func (c *Controller) attach(opts ViewOptions) {
	switch c.mode {
	case ModeMarkers:
		c.markers = &MarkerLayer{Features: c.result.Features, style: opts.MarkerStyle()}
		c.view.AddLayer(c.markers)
	case ModeHeat:
		c.heat = &HeatLayer{
			Features: c.result.Features,
			radius:   c.heatOK.Radius,
			blur:     c.heatOK.Blur,
			opacity:  c.heatOK.Opacity,
		}
		c.view.AddLayer(c.heat)
	}
}

func (c *Controller) selectMode(m Mode) {
	if c.onOptionsChange == nil {
		return
	}
	c.onOptionsChange(c.props.Options.WithMode(m))
}

// View returns the controlled view.
func (c *Controller) View() *View { return c.view }

// Mode returns the active overlay mode.
func (c *Controller) Mode() Mode { return c.mode }

// Control returns the in-map layer switch.
func (c *Controller) Control() *LayerSwitch { return c.control }

// Markers returns the attached marker layer, or nil.
func (c *Controller) Markers() *MarkerLayer { return c.markers }

// Heat returns the attached heat layer, or nil.
func (c *Controller) Heat() *HeatLayer { return c.heat }

// TileOverlay returns the supplementary tile layer, or nil.
func (c *Controller) TileOverlay() *TileLayer { return c.tile }

// Features returns the features of the last successful build.
func (c *Controller) Features() []feature.PointFeature { return c.result.Features }

// Props returns the last applied delivery.
func (c *Controller) Props() Props { return c.props }

// modeOf derives the overlay from the two flags. When both are set the
// current mode is kept, defaulting to markers.
func modeOf(o ViewOptions, current Mode) Mode {
	switch {
	case o.MarkersLayer && o.HeatmapLayer:
		if current == ModeHeat {
			return ModeHeat
		}
		return ModeMarkers
	case o.MarkersLayer:
		return ModeMarkers
	case o.HeatmapLayer:
		return ModeHeat
	}
	return ModeNone
}

// resolveMode lets the flag that was just turned on win.
func resolveMode(prev, cur ViewOptions, current Mode) Mode {
	markersOn := cur.MarkersLayer && !prev.MarkersLayer
	heatOn := cur.HeatmapLayer && !prev.HeatmapLayer
	switch {
	case markersOn && !heatOn:
		return ModeMarkers
	case heatOn && !markersOn:
		return ModeHeat
	}
	return modeOf(cur, current)
}

// Skipped returns how many rows the last build dropped.
func (c *Controller) Skipped() int { return c.result.Skipped }
