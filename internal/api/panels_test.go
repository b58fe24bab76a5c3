package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geomap/internal/mapview"
	"github.com/joeblew999/plat-geomap/internal/service"
)

func newTestAPI(t *testing.T) humatest.TestAPI {
	t.Helper()
	return newTestAPIWithDefaults(t, mapview.DefaultOptions())
}

func newTestAPIWithDefaults(t *testing.T, defaults mapview.ViewOptions) humatest.TestAPI {
	t.Helper()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	_, api := humatest.New(t, cfg)

	RegisterRoutes(api, &Services{
		Panels: service.NewPanelService("", defaults, service.NewEventBus()),
	})
	return api
}

var twoPoints = map[string]any{
	"series": []any{map[string]any{
		"fields": []any{
			map[string]any{"name": "lat", "values": []any{48.26, 48.27}},
			map[string]any{"name": "lon", "values": []any{11.66, 11.67}},
			map[string]any{"name": "label", "values": []any{"a", "b"}},
		},
	}},
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", resp.Body.String())
	}
	if !strings.Contains(strings.Join(resp.Result().Header.Values("Link"), ","), `rel="panels"`) {
		t.Error("expected panels link")
	}
}

func TestPanelCRUD(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Post("/api/v1/panels", map[string]any{"name": "Vans"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created service.PanelConfig
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != "vans" || !created.Options.HeatmapLayer {
		t.Errorf("unexpected panel %+v", created)
	}
	links := strings.Join(resp.Result().Header.Values("Link"), ",")
	if !strings.Contains(links, `rel="show-markers"`) || strings.Contains(links, `rel="show-heat"`) {
		t.Errorf("expected only a show-markers action, got %s", links)
	}

	if resp := api.Post("/api/v1/panels", map[string]any{"name": "Vans"}); resp.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", resp.Code)
	}

	resp = api.Get("/api/v1/panels?limit=10")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"total":1`) {
		t.Errorf("expected total 1, got %s", resp.Body.String())
	}

	if resp := api.Get("/api/v1/panels/vans"); resp.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", resp.Code)
	}
	if resp := api.Delete("/api/v1/panels/vans"); resp.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", resp.Code)
	}
	if resp := api.Get("/api/v1/panels/vans"); resp.Code != http.StatusNotFound {
		t.Errorf("get deleted: expected 404, got %d", resp.Code)
	}
}

func TestCreatePanelDefaults(t *testing.T) {
	defaults := mapview.DefaultOptions()
	defaults.ZoomLevel = 7
	defaults.TileURL = "https://tiles.example.com/{z}/{x}/{y}.png"
	api := newTestAPIWithDefaults(t, defaults)

	resp := api.Post("/api/v1/panels", map[string]any{"name": "Vans"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created service.PanelConfig
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Options.ZoomLevel != 7 || created.Options.TileURL != defaults.TileURL {
		t.Errorf("expected configured defaults, got zoom=%v tile=%q", created.Options.ZoomLevel, created.Options.TileURL)
	}

	explicit := mapview.DefaultOptions()
	explicit.ZoomLevel = 12
	resp = api.Post("/api/v1/panels", map[string]any{"name": "Bikes", "options": explicit})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create with options: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	created = service.PanelConfig{}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Options.ZoomLevel != 12 || created.Options.TileURL != "" {
		t.Errorf("expected the explicit options, got %+v", created.Options)
	}
}

func TestPushFrameAndState(t *testing.T) {
	api := newTestAPI(t)
	api.Post("/api/v1/panels", map[string]any{"name": "Vans"})

	resp := api.Post("/api/v1/panels/vans/frame", twoPoints)
	if resp.Code != http.StatusOK {
		t.Fatalf("frame: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var state service.State
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Features != 2 || state.Mode != "heat" || state.Revision != 1 {
		t.Errorf("unexpected state %+v", state)
	}
	if len(state.Bounds) != 4 || state.Bounds[0] != 11.66 || state.Bounds[3] != 48.27 {
		t.Errorf("expected bounds around both points, got %v", state.Bounds)
	}

	resp = api.Get("/api/v1/panels/vans/features")
	if resp.Code != http.StatusOK {
		t.Fatalf("features: expected 200, got %d", resp.Code)
	}
	if ct := resp.Result().Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected geo+json, got %s", ct)
	}
	fc, err := geojson.UnmarshalFeatureCollection(resp.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("expected 2 features, got %d", len(fc.Features))
	}

	bad := map[string]any{"series": []any{map[string]any{
		"fields": []any{map[string]any{"name": "speed", "values": []any{1}}},
	}}}
	if resp := api.Post("/api/v1/panels/vans/frame", bad); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad frame: expected 422, got %d", resp.Code)
	}

	resp = api.Get("/api/v1/panels/vans/state")
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Features != 2 || state.Revision != 1 {
		t.Errorf("expected last good state kept, got %+v", state)
	}
}

func TestOptionsAndLayer(t *testing.T) {
	api := newTestAPI(t)
	api.Post("/api/v1/panels", map[string]any{"name": "Vans"})

	opts := mapview.DefaultOptions()
	opts.HeatRadius = "wide"
	if resp := api.Put("/api/v1/panels/vans/options", opts); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid heat radius: expected 422, got %d", resp.Code)
	}

	opts.HeatRadius = "8"
	opts.ZoomLevel = 12
	if resp := api.Put("/api/v1/panels/vans/options", opts); resp.Code != http.StatusOK {
		t.Fatalf("options: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp := api.Put("/api/v1/panels/vans/layer", map[string]any{"mode": "markers"})
	if resp.Code != http.StatusOK {
		t.Fatalf("layer: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = api.Get("/api/v1/panels/vans/options")
	var got mapview.ViewOptions
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.MarkersLayer || got.HeatmapLayer || got.ZoomLevel != 12 || got.HeatRadius != "8" {
		t.Errorf("unexpected options %+v", got)
	}

	if resp := api.Put("/api/v1/panels/vans/layer", map[string]any{"mode": "satellite"}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown mode: expected 422, got %d", resp.Code)
	}
}

func TestTiles(t *testing.T) {
	api := newTestAPI(t)
	api.Post("/api/v1/panels", map[string]any{"name": "Vans"})
	api.Post("/api/v1/panels/vans/frame", twoPoints)

	resp := api.Get("/api/v1/panels/vans/tiles/0/0/0")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if enc := resp.Result().Header.Get("Content-Encoding"); enc != "gzip" {
		t.Errorf("expected gzip encoding, got %q", enc)
	}
	if resp.Body.Len() == 0 {
		t.Error("expected tile data")
	}

	resp = api.Get("/api/v1/panels/vans/tiles?z=14")
	if resp.Code != http.StatusOK {
		t.Fatalf("tile index: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var refs []TileRef
	if err := json.Unmarshal(resp.Body.Bytes(), &refs); err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 tiles at z14, got %d", len(refs))
	}
	if resp := api.Get(refs[0].Href); resp.Code != http.StatusOK {
		t.Errorf("listed tile %s: expected 200, got %d", refs[0].Href, resp.Code)
	}

	if resp := api.Get("/api/v1/panels/vans/tiles/3/0/0"); resp.Code != http.StatusNoContent {
		t.Errorf("empty tile: expected 204, got %d", resp.Code)
	}
	if resp := api.Get("/api/v1/panels/vans/tiles/1/5/0"); resp.Code != http.StatusBadRequest {
		t.Errorf("out of range: expected 400, got %d", resp.Code)
	}
}

func TestDBUnavailable(t *testing.T) {
	api := newTestAPI(t)
	if resp := api.Get("/api/v1/tables"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.Code)
	}
	api.Post("/api/v1/panels", map[string]any{"name": "Vans"})
	if resp := api.Post("/api/v1/panels/vans/query", map[string]any{"query": "SELECT 1"}); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.Code)
	}
}
