package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geomap/internal/db"
	"github.com/joeblew999/plat-geomap/internal/feature"
	"github.com/joeblew999/plat-geomap/internal/frame"
	"github.com/joeblew999/plat-geomap/internal/humastar"
	"github.com/joeblew999/plat-geomap/internal/mapview"
	"github.com/joeblew999/plat-geomap/internal/service"
	"github.com/joeblew999/plat-geomap/internal/tiles"
)

type IDInput struct {
	ID string `path:"id" doc:"Panel ID" example:"vehicles"`
}

// PanelBody is a panel configuration with its state-dependent actions.
type PanelBody struct {
	service.PanelConfig
}

var panelActions = []humastar.ActionDef{
	{Rel: "state", Pattern: "/api/v1/panels/%s/state", Method: "GET", Title: "View state"},
	{Rel: "push-frame", Pattern: "/api/v1/panels/%s/frame", Method: "POST", Title: "Push data"},
	{Rel: "delete", Pattern: "/api/v1/panels/%s", Method: "DELETE", Title: "Delete panel"},
}

// Actions offers a switch to each overlay that is not showing.
func (b PanelBody) Actions() []humastar.Action {
	actions := humastar.ActionsFor(b.ID, panelActions...)
	layer := "/api/v1/panels/" + b.ID + "/layer"
	if !b.Options.MarkersLayer || b.Options.HeatmapLayer {
		actions = append(actions, humastar.Action{Rel: "show-markers", Href: layer, Method: "PUT", Title: "Markers"})
	}
	if !b.Options.HeatmapLayer || b.Options.MarkersLayer {
		actions = append(actions, humastar.Action{Rel: "show-heat", Href: layer, Method: "PUT", Title: "Heat Map"})
	}
	return actions
}

// CreatePanelBody is the create request. Options is a pointer so an omitted
// object keeps the service defaults instead of the schema defaults.
type CreatePanelBody struct {
	ID      string               `json:"id,omitempty" doc:"Unique panel identifier" example:"vehicles"`
	Name    string               `json:"name" minLength:"1" maxLength:"100" doc:"Display name" example:"Vehicles"`
	Options *mapview.ViewOptions `json:"options,omitempty" doc:"Map view options; the server defaults apply when omitted"`
}

type PanelOutput struct {
	Body PanelBody
}

type StateOutput struct {
	Body service.State
}

// RegisterPanels registers panel CRUD and view routes.
func (h *APIHandler) RegisterPanels(api huma.API) {
	tags := huma.OperationTags("panels")
	huma.Get(api, "/api/v1/panels", h.ListPanels, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "create-panel",
		Method:        http.MethodPost,
		Path:          "/api/v1/panels",
		Summary:       "Create panel",
		Tags:          []string{"panels"},
		DefaultStatus: http.StatusCreated,
	}, h.CreatePanel)
	huma.Get(api, "/api/v1/panels/{id}", h.GetPanel, tags)
	huma.Delete(api, "/api/v1/panels/{id}", h.DeletePanel, tags)

	huma.Get(api, "/api/v1/panels/{id}/options", h.GetOptions, tags)
	huma.Put(api, "/api/v1/panels/{id}/options", h.PutOptions, tags)
	huma.Put(api, "/api/v1/panels/{id}/layer", h.PutLayer, tags)

	huma.Post(api, "/api/v1/panels/{id}/frame", h.PushFrame, huma.OperationTags("data"))
	huma.Post(api, "/api/v1/panels/{id}/query", h.QueryFrame, huma.OperationTags("data"))

	huma.Get(api, "/api/v1/panels/{id}/state", h.GetState, huma.OperationTags("view"))
	huma.Get(api, "/api/v1/panels/{id}/features", h.GetFeatures, huma.OperationTags("view"))
	huma.Get(api, "/api/v1/panels/{id}/tiles", h.ListTiles, huma.OperationTags("view"))
	huma.Get(api, "/api/v1/panels/{id}/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("view"))
}

type ListPanelsInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

func (h *APIHandler) ListPanels(ctx context.Context, input *ListPanelsInput) (*struct {
	Body humastar.PageBody[service.PanelConfig]
}, error) {
	page := humastar.Paginate(h.svc.Panels.List(), input.Offset, input.Limit)
	return &struct {
		Body humastar.PageBody[service.PanelConfig]
	}{Body: page}, nil
}

func (h *APIHandler) CreatePanel(ctx context.Context, input *struct{ Body CreatePanelBody }) (*PanelOutput, error) {
	cfg := service.PanelConfig{ID: input.Body.ID, Name: input.Body.Name}
	if input.Body.Options != nil {
		cfg.Options = *input.Body.Options
	}
	created, err := h.svc.Panels.Create(cfg)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &PanelOutput{Body: PanelBody{created}}, nil
}

func (h *APIHandler) GetPanel(ctx context.Context, input *IDInput) (*PanelOutput, error) {
	cfg, ok := h.svc.Panels.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("panel not found")
	}
	return &PanelOutput{Body: PanelBody{cfg}}, nil
}

func (h *APIHandler) DeletePanel(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Panels.Delete(input.ID); err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Panel deleted"}}, nil
}

func (h *APIHandler) GetOptions(ctx context.Context, input *IDInput) (*struct{ Body mapview.ViewOptions }, error) {
	cfg, ok := h.svc.Panels.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("panel not found")
	}
	return &struct{ Body mapview.ViewOptions }{Body: cfg.Options}, nil
}

func (h *APIHandler) PutOptions(ctx context.Context, input *struct {
	IDInput
	Body mapview.ViewOptions
}) (*PanelOutput, error) {
	cfg, err := h.svc.Panels.SetOptions(input.ID, input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &PanelOutput{Body: PanelBody{cfg}}, nil
}

type LayerInput struct {
	IDInput
	Body struct {
		Mode string `json:"mode" enum:"markers,heat,none" doc:"Overlay to show" example:"markers"`
	}
}

func (h *APIHandler) PutLayer(ctx context.Context, input *LayerInput) (*PanelOutput, error) {
	cfg, err := h.svc.Panels.SelectLayer(input.ID, mapview.Mode(input.Body.Mode))
	if err != nil {
		return nil, toHumaError(err)
	}
	return &PanelOutput{Body: PanelBody{cfg}}, nil
}

type FrameInput struct {
	IDInput
	Body frame.Data
}

// PushFrame renders the first series of a host data payload.
func (h *APIHandler) PushFrame(ctx context.Context, input *FrameInput) (*StateOutput, error) {
	state, err := h.svc.Panels.PushFrame(input.ID, input.Body.Primary())
	if err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: state}, nil
}

type QueryFrameInput struct {
	IDInput
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"SQL query; columns are matched by name (lat, lon, time, label, weight)" example:"SELECT lat, lon, name AS label FROM pings"`
		Name  string `json:"name,omitempty" doc:"Series name"`
	}
}

// QueryFrame runs a DuckDB query and pushes the result as the panel's frame.
func (h *APIHandler) QueryFrame(ctx context.Context, input *QueryFrameInput) (*StateOutput, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if _, ok := h.svc.Panels.Get(input.ID); !ok {
		return nil, huma.Error404NotFound("panel not found")
	}

	f, err := db.QueryFrame(ctx, h.svc.DB, input.Body.Name, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	state, err := h.svc.Panels.PushFrame(input.ID, f)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: state}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *IDInput) (*StateOutput, error) {
	state, err := h.svc.Panels.State(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: state}, nil
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// GetFeatures returns the overlay's features as a GeoJSON FeatureCollection.
func (h *APIHandler) GetFeatures(ctx context.Context, input *IDInput) (*GeoJSONOutput, error) {
	features, err := h.svc.Panels.Features(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	data, err := json.Marshal(feature.FeatureCollection(features))
	if err != nil {
		return nil, toHumaError(err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

type TileIndexInput struct {
	IDInput
	Z uint32 `query:"z" maximum:"22" default:"0" doc:"Zoom"`
}

// TileRef is one non-empty tile of a panel.
type TileRef struct {
	Z    uint32 `json:"z" doc:"Zoom"`
	X    uint32 `json:"x" doc:"Tile column"`
	Y    uint32 `json:"y" doc:"Tile row"`
	Href string `json:"href" doc:"Tile URL"`
}

// ListTiles lists the tiles at a zoom that hold at least one feature, so
// clients can prefetch exactly those.
func (h *APIHandler) ListTiles(ctx context.Context, input *TileIndexInput) (*struct{ Body []TileRef }, error) {
	features, err := h.svc.Panels.Features(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	refs := []TileRef{}
	for _, t := range tiles.Cover(features, input.Z) {
		refs = append(refs, TileRef{
			Z:    uint32(t.Z),
			X:    t.X,
			Y:    t.Y,
			Href: fmt.Sprintf("/api/v1/panels/%s/tiles/%d/%d/%d", input.ID, t.Z, t.X, t.Y),
		})
	}
	return &struct{ Body []TileRef }{Body: refs}, nil
}

type TileInput struct {
	IDInput
	Z      uint32  `path:"z" maximum:"22" doc:"Zoom"`
	X      uint32  `path:"x" doc:"Tile column"`
	Y      uint32  `path:"y" doc:"Tile row"`
	Buffer float64 `query:"buffer" minimum:"0" maximum:"256" default:"16" doc:"Edge buffer in pixels"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	CacheControl    string `header:"Cache-Control"`
	Body            []byte
}

// GetTile renders one gzipped vector tile of the panel's features.
// Tiles without features return 204.
func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	features, err := h.svc.Panels.Features(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	tile, err := tiles.Render(features, input.Z, input.X, input.Y, input.Buffer)
	if err != nil {
		return nil, toHumaError(err)
	}
	if tile.Empty() {
		return &TileOutput{Status: http.StatusNoContent, CacheControl: "no-cache"}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		CacheControl:    "no-cache",
		Body:            tile.Data,
	}, nil
}
