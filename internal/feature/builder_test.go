package feature

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geomap/internal/frame"
)

func sample() frame.Frame {
	return frame.Frame{Fields: []frame.Field{
		{Name: "time", Values: []any{float64(1700000000000), float64(1700000060000)}},
		{Name: "lat", Values: []any{48.26, 48.27}},
		{Name: "lon", Values: []any{11.67, 11.68}},
		{Name: "label", Values: []any{"a", "b"}},
		{Name: "weight", Values: []any{3.0, 5.0}},
	}}
}

func TestBuildCount(t *testing.T) {
	tests := []struct {
		name string
		rows int
	}{
		{"empty", 0},
		{"one", 1},
		{"many", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat := make([]any, tt.rows)
			lon := make([]any, tt.rows)
			for i := range lat {
				lat[i] = float64(i) / 10
				lon[i] = float64(i) / 5
			}
			f := frame.Frame{Fields: []frame.Field{
				{Name: "lat", Values: lat},
				{Name: "lon", Values: lon},
			}}
			res, err := Builder{}.Build(f)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(res.Features) != tt.rows {
				t.Errorf("got %d features, want %d", len(res.Features), tt.rows)
			}
		})
	}
}

func TestBuildNoFields(t *testing.T) {
	res, err := Builder{}.Build(frame.Frame{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Features == nil || len(res.Features) != 0 {
		t.Errorf("expected empty non-nil features, got %v", res.Features)
	}
}

func TestBuildProjectionRoundTrip(t *testing.T) {
	res, err := Builder{}.Build(sample())
	if err != nil {
		t.Fatal(err)
	}
	for i, pf := range res.Features {
		if pf.Position != Project(pf.Source) {
			t.Errorf("feature %d: position %v is not the projection of %v", i, pf.Position, pf.Source)
		}
		back := Unproject(pf.Position)
		if math.Abs(back.Lon()-pf.Source.Lon()) > 1e-9 || math.Abs(back.Lat()-pf.Source.Lat()) > 1e-9 {
			t.Errorf("feature %d: round trip %v, want %v", i, back, pf.Source)
		}
	}

	// Null island projects to the mercator origin.
	if got := Project(orb.Point{0, 0}); math.Abs(got.X()) > 1e-9 || math.Abs(got.Y()) > 1e-9 {
		t.Errorf("expected origin, got %v", got)
	}
}

func TestBuildAttributes(t *testing.T) {
	res, err := Builder{Labels: true}.Build(sample())
	if err != nil {
		t.Fatal(err)
	}
	first := res.Features[0]
	if first.Label != "a" || first.Time == nil || first.Weight == nil || *first.Weight != 3 {
		t.Errorf("unexpected attributes: %+v", first)
	}
	if first.Style.Text != "a" || first.Style.TextOffsetY != LabelOffsetY {
		t.Errorf("expected text label above point, got %+v", first.Style)
	}
	if first.Style.Fill != DefaultFill {
		t.Errorf("fill=%q, want %q", first.Style.Fill, DefaultFill)
	}

	res, _ = Builder{}.Build(sample())
	if res.Features[0].Style.Text != "" {
		t.Error("labels disabled should not attach text")
	}
}

func TestBuildRadius(t *testing.T) {
	tests := []struct {
		name    string
		builder Builder
		want    []float64
	}{
		{"fixed default", Builder{}, []float64{2, 2}},
		{"fixed with factor", Builder{Scale: ScaleFixed, Factor: 3}, []float64{6, 6}},
		{"direct", Builder{Scale: ScaleDirect}, []float64{3, 5}},
		{"direct with factor", Builder{Scale: ScaleDirect, Factor: 2}, []float64{6, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.builder.Build(sample())
			if err != nil {
				t.Fatal(err)
			}
			for i, pf := range res.Features {
				if pf.Style.Radius != tt.want[i] {
					t.Errorf("feature %d radius=%v, want %v", i, pf.Style.Radius, tt.want[i])
				}
			}
		})
	}

	f := frame.Frame{Fields: []frame.Field{
		{Name: "lat", Values: []any{1.0}},
		{Name: "lon", Values: []any{1.0}},
	}}
	res, _ := Builder{Scale: ScaleDirect}.Build(f)
	if res.Features[0].Style.Radius != baseRadius {
		t.Errorf("missing weight radius=%v, want %v", res.Features[0].Style.Radius, baseRadius)
	}
}

func TestBuildSkipsInvalidRows(t *testing.T) {
	f := frame.Frame{Fields: []frame.Field{
		{Name: "lat", Values: []any{48.26, "abc", nil, 48.27}},
		{Name: "lon", Values: []any{11.67, 11.0, 11.0, 11.68}},
	}}
	res, err := Builder{}.Build(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Features) != 2 || res.Skipped != 2 {
		t.Errorf("got %d features, %d skipped; want 2, 2", len(res.Features), res.Skipped)
	}
}

func TestBuildMissingColumn(t *testing.T) {
	f := frame.Frame{Fields: []frame.Field{{Name: "lat", Values: []any{1.0}}}}
	if _, err := (Builder{}).Build(f); !errors.Is(err, frame.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestFeatureCollection(t *testing.T) {
	res, err := Builder{Labels: true}.Build(sample())
	if err != nil {
		t.Fatal(err)
	}
	fc := FeatureCollection(res.Features)
	if len(fc.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(fc.Features))
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	back, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := back.Features[1].Geometry.(orb.Point)
	if !ok || p != (orb.Point{11.68, 48.27}) {
		t.Errorf("geometry=%v, want lon/lat point", back.Features[1].Geometry)
	}
	if back.Features[1].Properties.MustString("label") != "b" {
		t.Errorf("label=%v", back.Features[1].Properties["label"])
	}
	if back.Features[0].Properties.MustFloat64("weight") != 3 {
		t.Errorf("weight=%v", back.Features[0].Properties["weight"])
	}
}
