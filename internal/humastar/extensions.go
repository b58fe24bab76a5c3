// extensions.go: injects x-datastar extensions into OpenAPI schemas.
//
// At server startup, InjectExtensions walks registered schemas and adds:
//   - x-datastar (per-schema): prefix, formTemplate, basePath
//   - x-signal, x-input, x-action (per-property): from Go struct tags
//
// The form renderer reads these from the OpenAPI document instead of re-walking struct tags.
package humastar

import (
	"reflect"

	"github.com/danielgtaylor/huma/v2"
)

// DatastarSchema is the "x-datastar" extension on OpenAPI schemas.
type DatastarSchema struct {
	Prefix   string `json:"prefix"`       // Signal prefix (e.g. "opt")
	FormTmpl string `json:"formTemplate"` // HTML template name (e.g. "options-form")
	BasePath string `json:"basePath"`     // Editor route prefix; may contain template actions
}

// DatastarSchemaConfig registers a Go type for Datastar extensions.
type DatastarSchemaConfig struct {
	Type     reflect.Type
	Prefix   string
	FormTmpl string
	// BasePath is the editor route prefix. The form template is executed
	// with the page data, so it may reference fields like {{.ID}}.
	BasePath string
}

// InjectExtensions walks the OpenAPI schema registry and adds x-datastar,
// x-signal, x-input and x-action extensions from Go struct tags. Types
// not yet in the registry are registered first.
func InjectExtensions(api huma.API, configs []DatastarSchemaConfig) {
	registry := api.OpenAPI().Components.Schemas

	for _, cfg := range configs {
		registry.Schema(cfg.Type, true, "")
		schema, ok := registry.Map()[cfg.Type.Name()]
		if !ok {
			continue
		}

		if schema.Extensions == nil {
			schema.Extensions = map[string]any{}
		}
		schema.Extensions["x-datastar"] = DatastarSchema{
			Prefix:   cfg.Prefix,
			FormTmpl: cfg.FormTmpl,
			BasePath: cfg.BasePath,
		}

		injectPropertyExtensions(schema, cfg.Type)
	}
}

func injectPropertyExtensions(schema *huma.Schema, t reflect.Type) {
	for i := range t.NumField() {
		sf := t.Field(i)
		_, jsonName := SignalName("", sf)
		if jsonName == "" {
			continue
		}

		prop, ok := schema.Properties[jsonName]
		if !ok {
			continue
		}

		ext := map[string]any{}
		if sig := sf.Tag.Get("signal"); sig != "" {
			ext["x-signal"] = sig
		}
		if inp := sf.Tag.Get("input"); inp != "" {
			ext["x-input"] = inp
		}
		if action := sf.Tag.Get("action"); action != "" {
			ext["x-action"] = action
		}

		if len(ext) > 0 {
			if prop.Extensions == nil {
				prop.Extensions = map[string]any{}
			}
			for k, v := range ext {
				prop.Extensions[k] = v
			}
		}
	}
}
