package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-geomap/internal/feature"
	"github.com/joeblew999/plat-geomap/internal/frame"
	"github.com/joeblew999/plat-geomap/internal/mapview"
	"github.com/joeblew999/plat-geomap/internal/tiles"
)

// ErrPanelNotFound is returned for unknown panel IDs.
var ErrPanelNotFound = errors.New("panel not found")

// ErrPanelExists is returned when creating a panel with a taken ID.
var ErrPanelExists = errors.New("panel already exists")

type panel struct {
	config  PanelConfig
	data    frame.Frame
	ctrl    *mapview.Controller
	lastErr error
	// selectErr is the result of the last options change requested by the view.
	selectErr error
}

// PanelService hosts map panels: it saves their options, delivers data and
// options to each panel's controller, and re-delivers when a panel asks
// for an options change.
type PanelService struct {
	dataDir  string
	defaults mapview.ViewOptions
	bus      *EventBus
	panels   map[string]*panel
	revision uint64
	mu       sync.RWMutex
}

// NewPanelService creates a panel service and loads saved panels from dataDir.
func NewPanelService(dataDir string, defaults mapview.ViewOptions, bus *EventBus) *PanelService {
	if bus == nil {
		bus = DefaultBus
	}
	s := &PanelService{
		dataDir:  dataDir,
		defaults: defaults,
		bus:      bus,
		panels:   make(map[string]*panel),
	}
	s.loadFromDisk()
	return s
}

// Defaults returns the options new panels start with.
func (s *PanelService) Defaults() mapview.ViewOptions {
	return s.defaults
}

// List returns all panel configurations ordered by ID.
func (s *PanelService) List() []PanelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]PanelConfig, 0, len(s.panels))
	for _, p := range s.panels {
		result = append(result, p.config)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get returns a panel configuration by ID.
func (s *PanelService) Get(id string) (PanelConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.panels[id]
	if !ok {
		return PanelConfig{}, false
	}
	return p.config, true
}

// Create adds a panel. Zero-valued options are replaced by the defaults.
func (s *PanelService) Create(cfg PanelConfig) (PanelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = generateID(cfg.Name)
	}
	if _, exists := s.panels[cfg.ID]; exists {
		return PanelConfig{}, fmt.Errorf("%w: %q", ErrPanelExists, cfg.ID)
	}
	if cfg.Options == (mapview.ViewOptions{}) {
		cfg.Options = s.defaults
	}
	if err := cfg.Options.Validate(); err != nil {
		return PanelConfig{}, err
	}

	p := s.mount(cfg)
	s.panels[cfg.ID] = p
	if err := s.saveToDisk(); err != nil {
		return PanelConfig{}, err
	}

	log.Printf("[panels] created %s", cfg.ID)
	s.bus.Publish(Event{Resource: "panels", Action: "created", ID: cfg.ID})
	return cfg, nil
}

// Delete removes a panel. Its view is dropped with it.
func (s *PanelService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.panels[id]; !exists {
		return fmt.Errorf("%w: %q", ErrPanelNotFound, id)
	}
	delete(s.panels, id)
	if err := s.saveToDisk(); err != nil {
		return err
	}

	s.bus.Publish(Event{Resource: "panels", Action: "deleted", ID: id})
	return nil
}

// SetOptions replaces a panel's options and re-delivers them to its view.
func (s *PanelService) SetOptions(id string, opts mapview.ViewOptions) (PanelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.panels[id]
	if !ok {
		return PanelConfig{}, fmt.Errorf("%w: %q", ErrPanelNotFound, id)
	}
	if err := s.applyOptions(p, opts); err != nil {
		return PanelConfig{}, err
	}
	return p.config, nil
}

// PushFrame delivers new data to a panel. Frames without a revision get
// the next one from the service counter.
func (s *PanelService) PushFrame(id string, f frame.Frame) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.panels[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %q", ErrPanelNotFound, id)
	}
	if f.Revision == 0 {
		s.revision++
		f.Revision = s.revision
	} else if f.Revision > s.revision {
		s.revision = f.Revision
	}

	p.data = f
	err := s.deliver(p)
	return s.snapshot(p), err
}

// SelectLayer runs a layer switch selection through the panel's in-map
// control, which reports the new flags back through the options callback.
func (s *PanelService) SelectLayer(id string, mode mapview.Mode) (PanelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.panels[id]
	if !ok {
		return PanelConfig{}, fmt.Errorf("%w: %q", ErrPanelNotFound, id)
	}

	if mode == mapview.ModeNone {
		if err := s.applyOptions(p, p.config.Options.WithMode(mapview.ModeNone)); err != nil {
			return PanelConfig{}, err
		}
		return p.config, nil
	}
	p.selectErr = nil
	if !p.ctrl.Control().Select(string(mode)) {
		return PanelConfig{}, fmt.Errorf("%w: layer mode %q", mapview.ErrInvalidOption, mode)
	}
	if p.selectErr != nil {
		return PanelConfig{}, p.selectErr
	}
	return p.config, p.lastErr
}

// State returns a snapshot of a panel's view.
func (s *PanelService) State(id string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.panels[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %q", ErrPanelNotFound, id)
	}
	return s.snapshot(p), nil
}

// Features returns the features currently backing the panel's overlay.
func (s *PanelService) Features(id string) ([]feature.PointFeature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.panels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPanelNotFound, id)
	}
	return p.ctrl.Features(), nil
}

// mount creates the panel's controller from its saved options and an empty frame.
func (s *PanelService) mount(cfg PanelConfig) *panel {
	p := &panel{config: cfg}
	ctrl, err := mapview.New(mapview.Props{Options: cfg.Options, Data: p.data}, func(opts mapview.ViewOptions) {
		// Called synchronously from inside a locked service method.
		p.selectErr = s.applyOptions(p, opts)
		if p.selectErr != nil {
			log.Printf("[panels] %s: options change rejected: %v", p.config.ID, p.selectErr)
		}
	})
	if err != nil {
		log.Printf("[panels] %s: mounted with fallbacks: %v", cfg.ID, err)
	}
	p.ctrl = ctrl
	p.lastErr = err
	return p
}

// applyOptions validates, saves and delivers options. A failed save leaves
// the previous options in place. Caller holds s.mu.
func (s *PanelService) applyOptions(p *panel, opts mapview.ViewOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	prev := p.config.Options
	p.config.Options = opts
	if err := s.saveToDisk(); err != nil {
		p.config.Options = prev
		return fmt.Errorf("saving options: %w", err)
	}
	return s.deliver(p)
}

// deliver hands the current props to the controller. Caller holds s.mu.
func (s *PanelService) deliver(p *panel) error {
	changes, err := p.ctrl.Update(mapview.Props{Options: p.config.Options, Data: p.data})
	p.lastErr = err
	if err != nil {
		log.Printf("[panels] %s: %v", p.config.ID, err)
		if errors.Is(err, frame.ErrMissingColumn) || errors.Is(err, frame.ErrColumnLength) {
			p.data = p.ctrl.Props().Data
		}
	}
	if len(changes) > 0 || err != nil {
		s.bus.Publish(Event{Resource: "panels", Action: "updated", ID: p.config.ID})
	}
	return err
}

func (s *PanelService) snapshot(p *panel) State {
	c := p.ctrl
	v := c.View()
	center := feature.Unproject(v.Center())

	st := State{
		ID:           p.config.ID,
		Revision:     c.Props().Data.Revision,
		Mode:         string(c.Mode()),
		Center:       LonLat{Lon: center.Lon(), Lat: center.Lat()},
		Zoom:         v.Zoom(),
		MaxZoom:      v.MaxZoom(),
		Interactions: "platform-modifier",
		Layers:       []LayerState{},
		Features:     len(c.Features()),
		Skipped:      c.Skipped(),
		Control: ControlState{
			ID:       c.Control().ID(),
			Selected: string(c.Control().Selected()),
			Options:  c.Control().Options(),
		},
	}
	if p.lastErr != nil {
		st.Error = p.lastErr.Error()
	}
	if b, ok := tiles.Bounds(c.Features()); ok {
		st.Bounds = []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}
	if a := v.LastAnimation(); a != nil {
		target := feature.Unproject(a.Center)
		st.Animation = &AnimationState{
			Center:     LonLat{Lon: target.Lon(), Lat: target.Lat()},
			DurationMS: a.Duration.Milliseconds(),
		}
	}

	for _, l := range v.Layers() {
		ls := LayerState{Kind: string(l.Kind()), ZIndex: l.ZIndex()}
		switch layer := l.(type) {
		case *mapview.TileLayer:
			ls.URL = layer.URL
		case *mapview.MarkerLayer:
			style := layer.Style()
			ls.Features = len(layer.Features)
			ls.Marker = &style
		case *mapview.HeatLayer:
			ls.Features = len(layer.Features)
			ls.Heat = &HeatState{Radius: layer.Radius(), Blur: layer.Blur(), Opacity: layer.Opacity()}
		}
		st.Layers = append(st.Layers, ls)
	}
	return st
}

// configFile returns the path to the saved panels file.
func (s *PanelService) configFile() string {
	return filepath.Join(s.dataDir, "panels.json")
}

// loadFromDisk restores saved panels. Missing or invalid files start empty.
func (s *PanelService) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return
	}

	var configs map[string]PanelConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		log.Printf("[panels] ignoring %s: %v", s.configFile(), err)
		return
	}

	for id, cfg := range configs {
		cfg.ID = id
		s.panels[id] = s.mount(cfg)
	}
}

// saveToDisk persists panel configurations. Caller holds s.mu.
func (s *PanelService) saveToDisk() error {
	if s.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	configs := make(map[string]PanelConfig, len(s.panels))
	for id, p := range s.panels {
		configs[id] = p.config
	}
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}

// generateID creates a URL-safe ID from a name, or a random one when the
// name has no usable characters.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return uuid.NewString()
	}
	return result.String()
}
