package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-geomap/internal/api"
	"github.com/joeblew999/plat-geomap/internal/api/editor"
	"github.com/joeblew999/plat-geomap/internal/db"
	"github.com/joeblew999/plat-geomap/internal/humastar"
	"github.com/joeblew999/plat-geomap/internal/mapview"
	"github.com/joeblew999/plat-geomap/internal/service"
	"github.com/joeblew999/plat-geomap/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	DataDir  string
	WebDir   string // optional directory with fragments/*.html overriding the built-in templates
	Defaults mapview.ViewOptions
	NoDB     bool
}

// Server is the map panel HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	bus      *service.EventBus
	panels   *service.PanelService
	renderer *templates.Renderer
}

// New creates a new server.
func New(cfg Config) *Server {
	if cfg.Defaults == (mapview.ViewOptions{}) {
		cfg.Defaults = mapview.DefaultOptions()
	}
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-geomap API", api.Version)
	humaConfig.Info.Description = "Map panels that render point data frames as markers or heat maps."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	bus := service.NewEventBus()
	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		bus:      bus,
		panels:   service.NewPanelService(cfg.DataDir, cfg.Defaults, bus),
		renderer: newRenderer(cfg.WebDir),
	}

	if !cfg.NoDB {
		conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "geomap"})
		if err != nil {
			log.Printf("[server] database unavailable: %v", err)
		} else {
			s.db = conn
		}
	}

	s.routes()
	return s
}

func newRenderer(webDir string) *templates.Renderer {
	if webDir != "" {
		r, err := templates.NewFromDir(webDir)
		if err == nil {
			log.Printf("[server] loaded fragment templates from %s", webDir)
			return r
		}
		log.Printf("[server] using built-in templates: %v", err)
	}
	r, err := templates.New()
	if err != nil {
		panic(err)
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Panels returns the panel service.
func (s *Server) Panels() *service.PanelService {
	return s.panels
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, &api.Services{
		Panels:  s.panels,
		DB:      s.db,
		DataDir: s.config.DataDir,
	})

	panelEditor := editor.NewPanelHandler(s.panels, s.bus, s.renderer)
	panelEditor.RegisterRoutes(s.humaAPI)

	humastar.InjectExtensions(s.humaAPI, editor.FormSchemas)
	if err := humastar.RegisterFormTemplates(s.humaAPI, s.renderer, editor.FormSchemas); err != nil {
		log.Printf("[server] %v", err)
	}

	s.mux.HandleFunc("GET /panels/{id}", panelEditor.Page)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service": "plat-geomap",
		"status":  "running",
		"panels":  len(s.panels.List()),
	})
}
