package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geomap/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/panels>; rel="panels"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/panels>; rel="panels"`,
	},
	"/api/v1/panels": {
		`</api/v1/tables>; rel="tables"`,
	},
	"/api/v1/panels/{id}": {
		`</api/v1/panels>; rel="collection"`,
	},
	"/api/v1/panels/{id}/state": {
		`</api/v1/panels>; rel="collection"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}

// relatedLinks are added to every panel item endpoint, relative to the panel.
var relatedLinks = []string{"options", "state", "features"}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link
// headers: static links per operation, a self link and panel relations for
// item endpoints, pagination links for paged bodies, and actions for bodies
// that implement humastar.Actor.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if id := ctx.Param("id"); id != "" && strings.HasPrefix(op.Path, "/api/v1/panels/{id}") {
			for _, rel := range relatedLinks {
				ctx.AppendHeader("Link", fmt.Sprintf(`</api/v1/panels/%s/%s>; rel="%s"`, id, rel, rel))
			}
		}

		if p, ok := v.(humastar.Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(humastar.Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}
