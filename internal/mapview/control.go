package mapview

import "github.com/google/uuid"

// Control is a small widget rendered on top of the map surface.
type Control interface {
	ID() string
}

// Option is one choice of a select-style control.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// LayerSwitch lets the viewer pick the overlay mode from inside the map.
// Selecting an option reports new flags through the bound callback; the
// view changes only once the host delivers the updated options.
type LayerSwitch struct {
	id       string
	selected Mode
	onSelect func(Mode)
}

func newLayerSwitch(selected Mode, onSelect func(Mode)) *LayerSwitch {
	return &LayerSwitch{
		id:       "layer-switch-" + uuid.NewString()[:8],
		selected: selected,
		onSelect: onSelect,
	}
}

// ID returns the DOM id for the rendered widget.
func (s *LayerSwitch) ID() string { return s.id }

// Options lists the selectable modes in display order.
func (s *LayerSwitch) Options() []Option {
	return []Option{
		{Value: string(ModeMarkers), Label: "Markers"},
		{Value: string(ModeHeat), Label: "Heat Map"},
	}
}

// Selected returns the mode shown as selected.
func (s *LayerSwitch) Selected() Mode { return s.selected }

// Select handles a user choice. Unknown values are ignored.
func (s *LayerSwitch) Select(value string) bool {
	mode := Mode(value)
	if mode != ModeMarkers && mode != ModeHeat {
		return false
	}
	if s.onSelect != nil {
		s.onSelect(mode)
	}
	return true
}

func (s *LayerSwitch) sync(m Mode) {
	if m == ModeMarkers || m == ModeHeat {
		s.selected = m
	}
}
