// formrender.go: runtime HTML form generation from OpenAPI schemas.
//
// At server startup, RegisterFormTemplates walks schemas with x-datastar
// extensions and builds Datastar-bound HTML form fragments:
//
//	string                   → <input type="text">
//	string + enum            → <select> with options
//	string + x-input:"color" → color picker + text input
//	boolean                  → <input type="checkbox">
//	boolean + x-action       → checkbox that posts on change
//	number/integer           → <input type="number"> with min/max/step
//
// Each form is registered as a named template (e.g. "options-form") and
// ends with a submit button that posts the bound signals.
package humastar

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geomap/internal/templates"
)

// SubmitAction is the route, relative to the schema's base path, that the
// form's submit button posts to.
const SubmitAction = "options"

// RegisterFormTemplates registers a form template for every configured
// schema carrying a form template name. Fields follow the Go struct order.
// Call after InjectExtensions.
func RegisterFormTemplates(api huma.API, r *templates.Renderer, configs []DatastarSchemaConfig) error {
	schemas := api.OpenAPI().Components.Schemas.Map()

	for _, cfg := range configs {
		schema, ok := schemas[cfg.Type.Name()]
		if !ok {
			continue
		}
		ds, ok := schema.Extensions["x-datastar"].(DatastarSchema)
		if !ok || ds.FormTmpl == "" {
			continue
		}

		html := renderFormHTML(schema, ds, fieldOrder(schema, cfg.Type))
		if err := r.Define(fmt.Sprintf(`{{define "%s"}}%s{{end}}`, ds.FormTmpl, html)); err != nil {
			return fmt.Errorf("form template %s: %w", ds.FormTmpl, err)
		}
	}
	return nil
}

// renderFormHTML builds the HTML form groups for a schema.
func renderFormHTML(schema *huma.Schema, ds DatastarSchema, names []string) string {
	var b strings.Builder

	for _, jsonName := range names {
		prop := schema.Properties[jsonName]
		if strings.HasPrefix(jsonName, "$") || prop.Type == "array" || prop.Type == "object" {
			continue
		}

		suffix := strings.ToLower(jsonName)
		if sig, ok := prop.Extensions["x-signal"]; ok {
			suffix = fmt.Sprint(sig)
		}
		signal := ds.Prefix + suffix

		required := slices.Contains(schema.Required, jsonName)
		label := prop.Description
		if label == "" {
			label = jsonName
		}

		xInput, _ := prop.Extensions["x-input"].(string)
		xAction, _ := prop.Extensions["x-action"].(string)

		switch {
		case prop.Type == "boolean":
			renderCheckbox(&b, label, signal, actionPath(ds, xAction))
		case xInput == "color":
			renderColorPicker(&b, label, signal, prop)
		case len(prop.Enum) > 0:
			renderEnumSelect(&b, label, signal, prop, required)
		case prop.Type == "number" || prop.Type == "integer":
			renderNumberInput(&b, label, signal, prop, required)
		default:
			renderTextInput(&b, label, signal, prop)
		}
	}

	fmt.Fprintf(&b, "<button type=\"button\" data-on:click=\"@post('%s')\">Submit</button>\n", actionPath(ds, SubmitAction))
	return b.String()
}

func actionPath(ds DatastarSchema, action string) string {
	if action == "" {
		return ""
	}
	return strings.TrimSuffix(ds.BasePath, "/") + "/" + action
}

func renderTextInput(b *strings.Builder, label, signal string, prop *huma.Schema) {
	b.WriteString(`<div class="form-group">`)
	fmt.Fprintf(b, "\n    <label>%s</label>\n", label)
	fmt.Fprintf(b, `    <input type="text" data-bind:%s`, signal)
	if prop.Default != nil {
		fmt.Fprintf(b, ` placeholder="%v"`, prop.Default)
	}
	b.WriteString(">\n</div>\n")
}

func renderNumberInput(b *strings.Builder, label, signal string, prop *huma.Schema, required bool) {
	b.WriteString(`<div class="form-group">`)
	fmt.Fprintf(b, "\n    <label>%s</label>\n", label)
	fmt.Fprintf(b, `    <input type="number" data-bind:%s`, signal)
	if prop.Minimum != nil {
		fmt.Fprintf(b, ` min="%v"`, *prop.Minimum)
	}
	if prop.Maximum != nil {
		fmt.Fprintf(b, ` max="%v"`, *prop.Maximum)
	}
	if prop.Type == "number" {
		b.WriteString(` step="any"`)
	}
	if prop.Default != nil {
		fmt.Fprintf(b, ` placeholder="%v"`, prop.Default)
	}
	if required {
		b.WriteString(` required`)
	}
	b.WriteString(">\n</div>\n")
}

// renderCheckbox renders a switch. With an action it posts on change
// instead of waiting for submit.
func renderCheckbox(b *strings.Builder, label, signal, action string) {
	b.WriteString(`<div class="form-group">`)
	b.WriteString("\n    <label><input type=\"checkbox\" ")
	fmt.Fprintf(b, "data-bind:%s", signal)
	if action != "" {
		fmt.Fprintf(b, ` data-on:change="@post('%s')"`, action)
	}
	fmt.Fprintf(b, "> %s</label>\n</div>\n", label)
}

func renderColorPicker(b *strings.Builder, label, signal string, prop *huma.Schema) {
	b.WriteString(`<div class="form-group">`)
	fmt.Fprintf(b, "\n    <label>%s</label>\n", label)
	b.WriteString(`    <div class="color-group">`)
	fmt.Fprintf(b, "\n        <input type=\"color\" data-bind:%s>\n", signal)
	fmt.Fprintf(b, `        <input type="text" data-bind:%s`, signal)
	if prop.Default != nil {
		fmt.Fprintf(b, ` placeholder="%v"`, prop.Default)
	}
	b.WriteString(">\n    </div>\n</div>\n")
}

func renderEnumSelect(b *strings.Builder, label, signal string, prop *huma.Schema, required bool) {
	b.WriteString(`<div class="form-group">`)
	fmt.Fprintf(b, "\n    <label>%s</label>\n", label)
	fmt.Fprintf(b, `    <select data-bind:%s`, signal)
	if required {
		b.WriteString(` required`)
	}
	b.WriteString(">\n")
	for _, v := range prop.Enum {
		fmt.Fprintf(b, "        <option value=\"%v\">%v</option>\n", v, v)
	}
	b.WriteString("    </select>\n</div>\n")
}

// fieldOrder lists the schema's properties in Go struct order. Properties
// without a matching field follow alphabetically.
func fieldOrder(schema *huma.Schema, t reflect.Type) []string {
	var names []string
	seen := map[string]bool{}
	for i := range t.NumField() {
		_, jsonName := SignalName("", t.Field(i))
		if _, ok := schema.Properties[jsonName]; ok && !seen[jsonName] {
			names = append(names, jsonName)
			seen[jsonName] = true
		}
	}

	var rest []string
	for name := range schema.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}
