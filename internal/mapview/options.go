package mapview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-geomap/internal/feature"
)

// ErrInvalidNumericOption is returned when a string-typed numeric option does not parse.
var ErrInvalidNumericOption = errors.New("invalid numeric option")

// ErrInvalidOption is returned by Validate for out-of-range values.
var ErrInvalidOption = errors.New("invalid option")

// Built-in view defaults.
const (
	BaseTileURL    = "https://{1-4}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}{r}.png"
	DefaultLon     = 11.66725
	DefaultLat     = 48.262725
	DefaultZoom    = 18
	DefaultMaxZoom = 19
)

// ViewOptions are the panel options saved by the host and delivered on every render.
// Huma reads the tags for OpenAPI and validation; humastar reads signal, input
// and action for the editor form. Switches with an action apply immediately.
//
// Heat radius and blur are strings because the host editor stores them as typed text.
type ViewOptions struct {
	TileURL      string  `json:"tile_url" yaml:"tile_url" doc:"Additional tile URL" example:"https://tile.example.com/{z}/{x}/{y}.png"`
	ZoomLevel    float64 `json:"zoom_level" yaml:"zoom_level" minimum:"0" maximum:"24" default:"18" doc:"Initial zoom" example:"18"`
	MaxZoom      float64 `json:"max_zoom" yaml:"max_zoom" minimum:"0" maximum:"24" default:"19" doc:"Maximum zoom" example:"19"`
	CenterLat    float64 `json:"center_lat" yaml:"center_lat" minimum:"-90" maximum:"90" default:"48.262725" doc:"Default center latitude" example:"48.262725"`
	CenterLon    float64 `json:"center_lon" yaml:"center_lon" minimum:"-180" maximum:"180" default:"11.66725" doc:"Default center longitude" example:"11.66725"`
	MarkersLayer bool    `json:"markersLayer" yaml:"markersLayer" default:"false" doc:"Markers" signal:"markers" action:"markers"`
	HeatmapLayer bool    `json:"heatmapLayer" yaml:"heatmapLayer" default:"true" doc:"Heat Map" signal:"heat" action:"heat"`
	MarkerRadius float64 `json:"marker_radius" yaml:"marker_radius" minimum:"0" default:"5" doc:"Marker radius" example:"5"`
	MarkerColor  string  `json:"marker_color" yaml:"marker_color" default:"white" doc:"Marker color" example:"white" input:"color"`
	MarkerStroke string  `json:"marker_stroke" yaml:"marker_stroke" default:"deepskyblue" doc:"Marker stroke" example:"deepskyblue" input:"color"`
	HeatRadius   string  `json:"heat_radius" yaml:"heat_radius" default:"5" doc:"Heat radius" example:"5"`
	HeatBlur     string  `json:"heat_blur" yaml:"heat_blur" default:"15" doc:"Heat blur" example:"15"`
	HeatOpacity  float64 `json:"heat_opacity" yaml:"heat_opacity" minimum:"0" maximum:"1" default:"0.9" doc:"Heat opacity" example:"0.9"`
	WeightScale  string  `json:"weight_scale,omitempty" yaml:"weight_scale" enum:"fixed,direct" default:"fixed" doc:"Point size mode"`
	ShowLabels   bool    `json:"show_labels,omitempty" yaml:"show_labels" default:"false" doc:"Show point labels"`
}

// DefaultOptions returns the options a new panel starts with.
func DefaultOptions() ViewOptions {
	return ViewOptions{
		ZoomLevel:    DefaultZoom,
		MaxZoom:      DefaultMaxZoom,
		CenterLat:    DefaultLat,
		CenterLon:    DefaultLon,
		HeatmapLayer: true,
		MarkerRadius: 5,
		MarkerColor:  "white",
		MarkerStroke: "deepskyblue",
		HeatRadius:   "5",
		HeatBlur:     "15",
		HeatOpacity:  0.9,
		WeightScale:  string(feature.ScaleFixed),
	}
}

// HeatParams holds parsed heat layer settings.
type HeatParams struct {
	Radius  int
	Blur    int
	Opacity float64
}

// HeatParams parses the string-typed heat settings.
func (o ViewOptions) HeatParams() (HeatParams, error) {
	radius, err := strconv.Atoi(strings.TrimSpace(o.HeatRadius))
	if err != nil {
		return HeatParams{}, fmt.Errorf("%w: heat_radius %q", ErrInvalidNumericOption, o.HeatRadius)
	}
	blur, err := strconv.Atoi(strings.TrimSpace(o.HeatBlur))
	if err != nil {
		return HeatParams{}, fmt.Errorf("%w: heat_blur %q", ErrInvalidNumericOption, o.HeatBlur)
	}
	return HeatParams{Radius: radius, Blur: blur, Opacity: o.HeatOpacity}, nil
}

// MarkerStyle returns the configured marker circle style.
func (o ViewOptions) MarkerStyle() MarkerStyle {
	return MarkerStyle{
		Radius:      o.MarkerRadius,
		Fill:        o.MarkerColor,
		Stroke:      o.MarkerStroke,
		StrokeWidth: 1,
	}
}

// Builder returns the feature builder configured by these options.
func (o ViewOptions) Builder() feature.Builder {
	return feature.Builder{
		Scale:  feature.WeightScale(o.WeightScale),
		Labels: o.ShowLabels,
	}
}

// WithMode returns a copy with the layer flags set for m, mutually exclusive.
func (o ViewOptions) WithMode(m Mode) ViewOptions {
	o.MarkersLayer = m == ModeMarkers
	o.HeatmapLayer = m == ModeHeat
	return o
}

// Validate checks ranges and numeric strings.
func (o ViewOptions) Validate() error {
	if o.ZoomLevel < 0 || o.MaxZoom < 0 {
		return fmt.Errorf("%w: zoom must be non-negative", ErrInvalidOption)
	}
	if o.HeatOpacity < 0 || o.HeatOpacity > 1 {
		return fmt.Errorf("%w: heat_opacity %v outside [0,1]", ErrInvalidOption, o.HeatOpacity)
	}
	if o.MarkerRadius < 0 {
		return fmt.Errorf("%w: marker_radius %v is negative", ErrInvalidOption, o.MarkerRadius)
	}
	switch feature.WeightScale(o.WeightScale) {
	case "", feature.ScaleFixed, feature.ScaleDirect:
	default:
		return fmt.Errorf("%w: weight_scale %q", ErrInvalidOption, o.WeightScale)
	}
	p, err := o.HeatParams()
	if err != nil {
		return err
	}
	if p.Radius < 0 || p.Blur < 0 {
		return fmt.Errorf("%w: heat radius and blur must be non-negative", ErrInvalidOption)
	}
	return nil
}
