// Package service contains the host side of the map panels: it stores
// panel options, feeds frames to each panel's view controller, and
// announces changes on the event bus.
package service

import "github.com/joeblew999/plat-geomap/internal/mapview"

// PanelConfig is the saved part of a panel.
type PanelConfig struct {
	ID      string              `json:"id,omitempty" doc:"Unique panel identifier" example:"vehicles"`
	Name    string              `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"Vehicles"`
	Options mapview.ViewOptions `json:"options,omitempty" doc:"Map view options; defaults apply when omitted"`
}

// LonLat is a geographic coordinate.
type LonLat struct {
	Lon float64 `json:"lon" doc:"Longitude" example:"11.66725"`
	Lat float64 `json:"lat" doc:"Latitude" example:"48.262725"`
}

// LayerState describes one attached layer.
type LayerState struct {
	Kind     string               `json:"kind" enum:"base,tile,markers,heat" doc:"Layer kind"`
	ZIndex   int                  `json:"zIndex" doc:"Stacking order"`
	URL      string               `json:"url,omitempty" doc:"Tile URL template"`
	Features int                  `json:"features,omitempty" doc:"Number of point features"`
	Marker   *mapview.MarkerStyle `json:"marker,omitempty" doc:"Marker style"`
	Heat     *HeatState           `json:"heat,omitempty" doc:"Heat settings"`
}

// HeatState holds heat layer settings.
type HeatState struct {
	Radius  int     `json:"radius" doc:"Heat radius"`
	Blur    int     `json:"blur" doc:"Heat blur"`
	Opacity float64 `json:"opacity" doc:"Heat opacity"`
}

// AnimationState is the last center animation.
type AnimationState struct {
	Center     LonLat `json:"center" doc:"Animation target"`
	DurationMS int64  `json:"durationMs" doc:"Animation duration in milliseconds"`
}

// ControlState describes the in-map layer switch.
type ControlState struct {
	ID       string           `json:"id" doc:"Control element id"`
	Selected string           `json:"selected" doc:"Selected layer mode"`
	Options  []mapview.Option `json:"options" doc:"Selectable modes"`
}

// State is a snapshot of a panel's live view.
type State struct {
	ID           string          `json:"id" doc:"Panel ID"`
	Revision     uint64          `json:"revision" doc:"Data revision rendered"`
	Mode         string          `json:"mode" enum:"none,markers,heat" doc:"Active overlay"`
	Center       LonLat          `json:"center" doc:"View center"`
	Zoom         float64         `json:"zoom" doc:"Current zoom"`
	MaxZoom      float64         `json:"maxZoom" doc:"Maximum zoom"`
	Interactions string          `json:"interactions" doc:"Pan/zoom interaction mode for the client renderer"`
	Layers       []LayerState    `json:"layers" doc:"Attached layers in draw order"`
	Animation    *AnimationState `json:"animation,omitempty" doc:"Last center animation"`
	Control      ControlState    `json:"control" doc:"Layer switch"`
	Features     int             `json:"features" doc:"Features built from the frame"`
	Skipped      int             `json:"skipped" doc:"Rows skipped for missing coordinates"`
	Bounds       []float64       `json:"bounds,omitempty" minItems:"4" maxItems:"4" doc:"Feature extent as [minLon, minLat, maxLon, maxLat] for fitting the view"`
	Error        string          `json:"error,omitempty" doc:"Last recoverable error"`
}
