// Package editor contains Datastar SSE handlers for the panel editor and
// the in-map layer switch.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geomap/internal/humastar"
	"github.com/joeblew999/plat-geomap/internal/mapview"
	"github.com/joeblew999/plat-geomap/internal/service"
	"github.com/joeblew999/plat-geomap/internal/templates"
)

const (
	// SignalPrefix prefixes every option signal, e.g. "optzoom_level".
	SignalPrefix = "opt"
	// FormTemplate is the generated options form.
	FormTemplate = "options-form"
	// LayerModeSignal carries the in-map layer switch selection.
	LayerModeSignal = "layermode"

	basePath = "/api/v1/editor/panels"
)

// FormSchemas registers ViewOptions for form generation.
var FormSchemas = []humastar.DatastarSchemaConfig{{
	Type:     reflect.TypeOf(mapview.ViewOptions{}),
	Prefix:   SignalPrefix,
	FormTmpl: FormTemplate,
	BasePath: basePath + "/{{.ID}}",
}}

// PanelHandler serves the editor and layer switch for panels.
type PanelHandler struct {
	humastar.Handler
	panels *service.PanelService
	bus    *service.EventBus
}

// NewPanelHandler creates a panel editor handler.
func NewPanelHandler(panels *service.PanelService, bus *service.EventBus, renderer *templates.Renderer) *PanelHandler {
	return &PanelHandler{
		Handler: humastar.Handler{Renderer: renderer},
		panels:  panels,
		bus:     bus,
	}
}

func (h *PanelHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("editor")
	huma.Get(api, basePath+"/{id}/form", h.Form, tags)
	huma.Post(api, basePath+"/{id}/options", h.SubmitOptions, tags)
	huma.Post(api, basePath+"/{id}/markers", h.ToggleMarkers, tags)
	huma.Post(api, basePath+"/{id}/heat", h.ToggleHeat, tags)
	huma.Post(api, basePath+"/{id}/switch", h.Switch, tags)
	huma.Get(api, basePath+"/{id}/events", h.Events, tags)
}

type PanelInput struct {
	ID string `path:"id" doc:"Panel ID"`
}

type PanelSignalsInput struct {
	ID      string `path:"id" doc:"Panel ID"`
	RawBody []byte
}

// MustParse parses the Datastar signals or returns a Huma 400 error.
func (i *PanelSignalsInput) MustParse() (humastar.Signals, error) {
	in := humastar.SignalsInput{RawBody: i.RawBody}
	return in.MustParse()
}

// Form patches the options form and seeds its signals from the saved options.
func (h *PanelHandler) Form(ctx context.Context, input *PanelInput) (*huma.StreamResponse, error) {
	cfg, ok := h.panels.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("panel not found")
	}
	signals, err := optionSignals(cfg.Options)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to build signals", err)
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.Render(FormTemplate, input), "#options-form")
		sse.Signals(signals)
	}), nil
}

// SubmitOptions applies the text and number fields. Switches are applied
// by their own routes as soon as they change.
func (h *PanelHandler) SubmitOptions(ctx context.Context, input *PanelSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	cfg, ok := h.panels.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("panel not found")
	}

	return h.Stream(func(sse humastar.SSE) {
		opts := cfg.Options
		if err := humastar.ApplySignals(SignalPrefix, signals, &opts); err != nil {
			sse.Error(err.Error())
			return
		}
		opts.MarkersLayer = cfg.Options.MarkersLayer
		opts.HeatmapLayer = cfg.Options.HeatmapLayer

		if _, err := h.panels.SetOptions(input.ID, opts); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Success("Options saved")
		h.patchState(sse, input.ID)
	}), nil
}

// ToggleMarkers applies the markers switch. Turning it on turns heat off.
func (h *PanelHandler) ToggleMarkers(ctx context.Context, input *PanelSignalsInput) (*huma.StreamResponse, error) {
	return h.toggle(input, mapview.ModeMarkers, SignalPrefix+"markers")
}

// ToggleHeat applies the heat map switch. Turning it on turns markers off.
func (h *PanelHandler) ToggleHeat(ctx context.Context, input *PanelSignalsInput) (*huma.StreamResponse, error) {
	return h.toggle(input, mapview.ModeHeat, SignalPrefix+"heat")
}

func (h *PanelHandler) toggle(input *PanelSignalsInput, mode mapview.Mode, signal string) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	cfg, ok := h.panels.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("panel not found")
	}

	opts := cfg.Options
	on := signals.Bool(signal)
	switch {
	case on:
		opts = opts.WithMode(mode)
	case mode == mapview.ModeMarkers:
		opts.MarkersLayer = false
	default:
		opts.HeatmapLayer = false
	}

	return h.Stream(func(sse humastar.SSE) {
		updated, err := h.panels.SetOptions(input.ID, opts)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(switchSignals(updated.Options))
		h.patchState(sse, input.ID)
	}), nil
}

// Switch handles a selection in the in-map layer switch.
func (h *PanelHandler) Switch(ctx context.Context, input *PanelSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if _, ok := h.panels.Get(input.ID); !ok {
		return nil, huma.Error404NotFound("panel not found")
	}
	mode := mapview.Mode(signals.String(LayerModeSignal))

	return h.Stream(func(sse humastar.SSE) {
		updated, err := h.panels.SelectLayer(input.ID, mode)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(switchSignals(updated.Options))
		h.patchState(sse, input.ID)
	}), nil
}

// Events streams state patches for one panel until the client disconnects
// or the panel is deleted.
func (h *PanelHandler) Events(ctx context.Context, input *PanelInput) (*huma.StreamResponse, error) {
	if _, ok := h.panels.Get(input.ID); !ok {
		return nil, huma.Error404NotFound("panel not found")
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.bus.Subscribe()
			defer h.bus.Unsubscribe(ch)

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case ev := <-ch:
					if ev.Resource != "panels" || ev.ID != input.ID {
						continue
					}
					if ev.Action == "deleted" {
						sse.Error(fmt.Sprintf("Panel %q was deleted", input.ID))
						return
					}
					if cfg, ok := h.panels.Get(input.ID); ok {
						sse.Signals(switchSignals(cfg.Options))
					}
					state := h.patchState(sse, input.ID)
					sse.DispatchCustomEvent("panel-changed", state)
				}
			}
		},
	}, nil
}

// patchState re-renders the state summary and the layer switch.
func (h *PanelHandler) patchState(sse humastar.SSE, id string) service.State {
	state, err := h.panels.State(id)
	if err != nil {
		sse.Error(err.Error())
		return state
	}
	sse.Patch(h.Render("panel-state", state), "#panel-state")
	sse.Patch(h.Render("layer-switch", state), "#layer-switch")
	return state
}

// PageData is the data for the panel page template.
type PageData struct {
	ID      string
	Name    string
	Base    string
	Signals string
	State   service.State
}

// Page serves the panel page: the map view fragments, the layer switch and the editor.
func (h *PanelHandler) Page(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cfg, ok := h.panels.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	state, err := h.panels.State(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	signals, err := optionSignals(cfg.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	signals["error"] = ""
	signals["success"] = ""
	data, err := json.Marshal(signals)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	html, err := h.Renderer.Render("panel-page", PageData{
		ID:      id,
		Name:    cfg.Name,
		Base:    basePath + "/" + id,
		Signals: string(data),
		State:   state,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// optionSignals returns the option signals plus the layer switch selection.
func optionSignals(opts mapview.ViewOptions) (map[string]any, error) {
	signals, err := humastar.SignalMap(SignalPrefix, opts)
	if err != nil {
		return nil, err
	}
	for k, v := range switchSignals(opts) {
		signals[k] = v
	}
	return signals, nil
}

func switchSignals(opts mapview.ViewOptions) map[string]any {
	mode := mapview.ModeNone
	switch {
	case opts.MarkersLayer:
		mode = mapview.ModeMarkers
	case opts.HeatmapLayer:
		mode = mapview.ModeHeat
	}
	return map[string]any{
		SignalPrefix + "markers": opts.MarkersLayer,
		SignalPrefix + "heat":    opts.HeatmapLayer,
		LayerModeSignal:          string(mode),
	}
}
