package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeblew999/plat-geomap/internal/frame"
	"github.com/joeblew999/plat-geomap/internal/mapview"
)

func pointsFrame(rev uint64) frame.Frame {
	return frame.Frame{
		Revision: rev,
		Fields: []frame.Field{
			{Name: "lat", Values: []any{48.26, 48.27}},
			{Name: "lon", Values: []any{11.66, 11.67}},
			{Name: "weight", Values: []any{2.0, 4.0}},
		},
	}
}

func TestPanelServiceCreate(t *testing.T) {
	dir := t.TempDir()
	svc := NewPanelService(dir, mapview.DefaultOptions(), NewEventBus())

	cfg, err := svc.Create(PanelConfig{Name: "Delivery Vans"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cfg.ID != "delivery_vans" {
		t.Errorf("expected id delivery_vans, got %q", cfg.ID)
	}
	if cfg.Options != mapview.DefaultOptions() {
		t.Errorf("expected default options, got %+v", cfg.Options)
	}

	if _, err := svc.Create(PanelConfig{Name: "Delivery Vans"}); !errors.Is(err, ErrPanelExists) {
		t.Errorf("expected ErrPanelExists, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "panels.json")); err != nil {
		t.Errorf("expected panels.json to be written: %v", err)
	}

	reloaded := NewPanelService(dir, mapview.DefaultOptions(), NewEventBus())
	got, ok := reloaded.Get("delivery_vans")
	if !ok {
		t.Fatal("expected panel to survive reload")
	}
	if got.Name != "Delivery Vans" {
		t.Errorf("expected name Delivery Vans, got %q", got.Name)
	}
}

func TestPanelServiceGenerateID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Vehicles", "vehicles"},
		{"Bike Share 2", "bike_share_2"},
		{"a/b-c", "ab-c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generateID(tt.name); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if id := generateID("???"); len(id) != 36 {
		t.Errorf("expected uuid fallback, got %q", id)
	}
}

func TestPanelServiceNotFound(t *testing.T) {
	svc := NewPanelService("", mapview.DefaultOptions(), NewEventBus())

	if _, err := svc.State("nope"); !errors.Is(err, ErrPanelNotFound) {
		t.Errorf("State: expected ErrPanelNotFound, got %v", err)
	}
	if _, err := svc.PushFrame("nope", pointsFrame(0)); !errors.Is(err, ErrPanelNotFound) {
		t.Errorf("PushFrame: expected ErrPanelNotFound, got %v", err)
	}
	if err := svc.Delete("nope"); !errors.Is(err, ErrPanelNotFound) {
		t.Errorf("Delete: expected ErrPanelNotFound, got %v", err)
	}
}

func TestPanelServicePushFrame(t *testing.T) {
	svc := NewPanelService("", mapview.DefaultOptions(), NewEventBus())
	if _, err := svc.Create(PanelConfig{ID: "p", Name: "P"}); err != nil {
		t.Fatal(err)
	}

	st, err := svc.PushFrame("p", pointsFrame(0))
	if err != nil {
		t.Fatalf("PushFrame: %v", err)
	}
	if st.Revision != 1 {
		t.Errorf("expected revision 1, got %d", st.Revision)
	}
	if st.Mode != "heat" {
		t.Errorf("expected heat mode, got %s", st.Mode)
	}
	if st.Features != 2 {
		t.Errorf("expected 2 features, got %d", st.Features)
	}
	if st.Animation == nil || st.Animation.DurationMS != 2000 {
		t.Errorf("expected a 2000ms animation, got %+v", st.Animation)
	}

	kinds := []string{}
	for _, l := range st.Layers {
		kinds = append(kinds, l.Kind)
	}
	if len(kinds) != 2 || kinds[0] != "base" || kinds[1] != "heat" {
		t.Errorf("expected [base heat], got %v", kinds)
	}

	st, err = svc.PushFrame("p", pointsFrame(0))
	if err != nil {
		t.Fatal(err)
	}
	if st.Revision != 2 {
		t.Errorf("expected revision 2, got %d", st.Revision)
	}
}

func TestPanelServiceBadFrameKeepsLastGood(t *testing.T) {
	svc := NewPanelService("", mapview.DefaultOptions(), NewEventBus())
	if _, err := svc.Create(PanelConfig{ID: "p", Name: "P"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PushFrame("p", pointsFrame(0)); err != nil {
		t.Fatal(err)
	}

	bad := frame.Frame{Fields: []frame.Field{{Name: "speed", Values: []any{1.0}}}}
	st, err := svc.PushFrame("p", bad)
	if !errors.Is(err, frame.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if st.Revision != 1 || st.Features != 2 {
		t.Errorf("expected revision 1 with 2 features kept, got revision %d with %d", st.Revision, st.Features)
	}
	if st.Error == "" {
		t.Error("expected error in state")
	}

	// A later options change must not replay the bad frame.
	opts := mapview.DefaultOptions()
	opts.ZoomLevel = 12
	if _, err := svc.SetOptions("p", opts); err != nil {
		t.Errorf("SetOptions: %v", err)
	}
}

func TestPanelServiceSelectLayer(t *testing.T) {
	svc := NewPanelService("", mapview.DefaultOptions(), NewEventBus())
	if _, err := svc.Create(PanelConfig{ID: "p", Name: "P"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PushFrame("p", pointsFrame(0)); err != nil {
		t.Fatal(err)
	}

	cfg, err := svc.SelectLayer("p", mapview.ModeMarkers)
	if err != nil {
		t.Fatalf("SelectLayer: %v", err)
	}
	if !cfg.Options.MarkersLayer || cfg.Options.HeatmapLayer {
		t.Errorf("expected markers only, got markers=%v heat=%v", cfg.Options.MarkersLayer, cfg.Options.HeatmapLayer)
	}

	st, _ := svc.State("p")
	if st.Mode != "markers" || st.Control.Selected != "markers" {
		t.Errorf("expected markers mode and selection, got %s/%s", st.Mode, st.Control.Selected)
	}

	if _, err := svc.SelectLayer("p", mapview.Mode("satellite")); !errors.Is(err, mapview.ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}

	cfg, err = svc.SelectLayer("p", mapview.ModeNone)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Options.MarkersLayer || cfg.Options.HeatmapLayer {
		t.Error("expected both flags off")
	}
	st, _ = svc.State("p")
	if len(st.Layers) != 1 {
		t.Errorf("expected only the base layer, got %d layers", len(st.Layers))
	}
}

func TestPanelServiceSaveFailureKeepsOptions(t *testing.T) {
	dir := t.TempDir()
	svc := NewPanelService(dir, mapview.DefaultOptions(), NewEventBus())
	if _, err := svc.Create(PanelConfig{ID: "p", Name: "P"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PushFrame("p", pointsFrame(0)); err != nil {
		t.Fatal(err)
	}

	// A directory in place of panels.json makes every save fail.
	file := filepath.Join(dir, "panels.json")
	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(file, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SelectLayer("p", mapview.ModeMarkers); err == nil {
		t.Fatal("expected SelectLayer to report the save error")
	}
	cfg, _ := svc.Get("p")
	if cfg.Options.MarkersLayer || !cfg.Options.HeatmapLayer {
		t.Errorf("expected heat options kept, got markers=%v heat=%v", cfg.Options.MarkersLayer, cfg.Options.HeatmapLayer)
	}
	st, _ := svc.State("p")
	if st.Mode != "heat" || st.Control.Selected != "heat" {
		t.Errorf("expected heat view, got %s/%s", st.Mode, st.Control.Selected)
	}

	next := cfg.Options
	next.ZoomLevel = 5
	if _, err := svc.SetOptions("p", next); err == nil {
		t.Fatal("expected SetOptions to report the save error")
	}
	if cfg, _ := svc.Get("p"); cfg.Options.ZoomLevel != mapview.DefaultZoom {
		t.Errorf("expected zoom %v kept, got %v", float64(mapview.DefaultZoom), cfg.Options.ZoomLevel)
	}
}

func TestPanelServiceSetOptionsValidation(t *testing.T) {
	svc := NewPanelService("", mapview.DefaultOptions(), NewEventBus())
	if _, err := svc.Create(PanelConfig{ID: "p", Name: "P"}); err != nil {
		t.Fatal(err)
	}

	opts := mapview.DefaultOptions()
	opts.HeatBlur = "soft"
	if _, err := svc.SetOptions("p", opts); !errors.Is(err, mapview.ErrInvalidNumericOption) {
		t.Errorf("expected ErrInvalidNumericOption, got %v", err)
	}

	cfg, _ := svc.Get("p")
	if cfg.Options.HeatBlur != "15" {
		t.Errorf("expected heat_blur to stay 15, got %q", cfg.Options.HeatBlur)
	}
}

func TestPanelServiceEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	svc := NewPanelService("", mapview.DefaultOptions(), bus)
	if _, err := svc.Create(PanelConfig{ID: "p", Name: "P"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PushFrame("p", pointsFrame(0)); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete("p"); err != nil {
		t.Fatal(err)
	}

	want := []string{"created", "updated", "deleted"}
	for _, action := range want {
		e := <-ch
		if e.Action != action || e.ID != "p" {
			t.Errorf("expected %s p, got %s %s", action, e.Action, e.ID)
		}
	}
}

func TestEventBusUnsubscribeTwice(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	if bus.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.Subscribers())
	}
	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)
	if bus.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.Subscribers())
	}
}

func TestLoadDefaults(t *testing.T) {
	opts, err := LoadDefaults("")
	if err != nil || opts != mapview.DefaultOptions() {
		t.Fatalf("expected built-in defaults, got %+v, %v", opts, err)
	}

	path := filepath.Join(t.TempDir(), "defaults.yaml")
	data := "zoom_level: 12\nmarkersLayer: true\nheatmapLayer: false\nheat_blur: \"20\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	opts, err = LoadDefaults(path)
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	if opts.ZoomLevel != 12 || !opts.MarkersLayer || opts.HeatmapLayer || opts.HeatBlur != "20" {
		t.Errorf("unexpected defaults %+v", opts)
	}
	if opts.MarkerColor != "white" {
		t.Errorf("expected unset keys to keep built-ins, got marker_color %q", opts.MarkerColor)
	}

	if err := os.WriteFile(path, []byte("heat_radius: wide\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDefaults(path); !errors.Is(err, mapview.ErrInvalidNumericOption) {
		t.Errorf("expected ErrInvalidNumericOption, got %v", err)
	}
}
