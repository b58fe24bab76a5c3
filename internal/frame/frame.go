// Package frame models the tabular data a host pushes into a map panel.
//
// A Frame is a set of parallel columns. Column roles (latitude, longitude,
// time, label, weight) are resolved by name first and fall back to the
// legacy positional layout when no coordinate column is named.
package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingColumn is returned when a required coordinate column cannot be resolved.
	ErrMissingColumn = errors.New("missing column")

	// ErrColumnLength is returned when referenced columns disagree on row count.
	ErrColumnLength = errors.New("column length mismatch")

	// ErrEmptyFrame is returned by FirstLocated when no row carries a usable coordinate.
	ErrEmptyFrame = errors.New("empty frame")
)

// Role identifies what a column means to the map.
type Role string

const (
	RoleLatitude  Role = "latitude"
	RoleLongitude Role = "longitude"
	RoleTime      Role = "time"
	RoleLabel     Role = "label"
	RoleWeight    Role = "weight"
)

// aliases lists accepted column names per role, lowercase.
var aliases = map[Role][]string{
	RoleLatitude:  {"latitude", "lat"},
	RoleLongitude: {"longitude", "lon", "lng", "long"},
	RoleTime:      {"time", "timestamp", "ts"},
	RoleLabel:     {"label", "name", "title"},
	RoleWeight:    {"weight", "value", "size", "count"},
}

// positional is the legacy host column order.
var positional = map[Role]int{
	RoleLatitude:  1,
	RoleLongitude: 2,
	RoleTime:      3,
	RoleLabel:     4,
	RoleWeight:    5,
}

// Field is one column of a frame.
type Field struct {
	Name   string `json:"name" doc:"Column name" example:"lat"`
	Type   string `json:"type,omitempty" doc:"Column type hint" example:"number"`
	Values []any  `json:"values" doc:"Column values, one per row"`
}

// Frame is one data series delivered for a render pass.
type Frame struct {
	// Revision increases every time the host delivers new data. Zero means
	// "not yet assigned".
	Revision uint64  `json:"revision,omitempty" doc:"Monotonic data revision"`
	Name     string  `json:"name,omitempty" doc:"Series name"`
	Fields   []Field `json:"fields" doc:"Parallel columns"`
}

// DataRow is one logical record across the resolved columns.
type DataRow struct {
	Time   *time.Time
	Lat    float64
	Lon    float64
	Label  string
	Weight *float64
	// Valid is false when the coordinate is missing, non-numeric or out of range.
	Valid bool
}

// Columns holds the resolved column index for each role; -1 when absent.
type Columns struct {
	Lat, Lon, Time, Label, Weight int
	Positional                    bool
}

// Resolve maps roles to column indexes. Latitude and longitude are required.
func (f *Frame) Resolve() (Columns, error) {
	cols := Columns{
		Lat:    f.lookup(RoleLatitude),
		Lon:    f.lookup(RoleLongitude),
		Time:   f.lookup(RoleTime),
		Label:  f.lookup(RoleLabel),
		Weight: f.lookup(RoleWeight),
	}

	if cols.Lat < 0 && cols.Lon < 0 && len(f.Fields) >= 3 {
		cols = Columns{
			Lat:        f.position(RoleLatitude),
			Lon:        f.position(RoleLongitude),
			Time:       f.position(RoleTime),
			Label:      f.position(RoleLabel),
			Weight:     f.position(RoleWeight),
			Positional: true,
		}
	}

	if cols.Lat < 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, RoleLatitude)
	}
	if cols.Lon < 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, RoleLongitude)
	}

	n := len(f.Fields[cols.Lat].Values)
	for _, idx := range []int{cols.Lon, cols.Time, cols.Label, cols.Weight} {
		if idx >= 0 && len(f.Fields[idx].Values) != n {
			return cols, fmt.Errorf("%w: %q has %d values, want %d",
				ErrColumnLength, f.Fields[idx].Name, len(f.Fields[idx].Values), n)
		}
	}
	return cols, nil
}

func (f *Frame) lookup(role Role) int {
	for i, field := range f.Fields {
		name := strings.ToLower(strings.TrimSpace(field.Name))
		for _, alias := range aliases[role] {
			if name == alias {
				return i
			}
		}
	}
	return -1
}

func (f *Frame) position(role Role) int {
	idx := positional[role]
	if idx < len(f.Fields) {
		return idx
	}
	return -1
}

// Len returns the number of rows, or 0 when the coordinate columns cannot be resolved.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	cols, err := f.Resolve()
	if err != nil {
		return 0
	}
	return len(f.Fields[cols.Lat].Values)
}

// Row extracts row i using previously resolved columns.
func (f *Frame) Row(cols Columns, i int) DataRow {
	var row DataRow

	lat, latOK := toFloat(f.value(cols.Lat, i))
	lon, lonOK := toFloat(f.value(cols.Lon, i))
	row.Lat, row.Lon = lat, lon
	row.Valid = latOK && lonOK &&
		lat >= -90 && lat <= 90 &&
		lon >= -180 && lon <= 180

	if t, ok := toTime(f.value(cols.Time, i)); ok {
		row.Time = &t
	}
	if v := f.value(cols.Label, i); v != nil {
		row.Label = fmt.Sprint(v)
	}
	if w, ok := toFloat(f.value(cols.Weight, i)); ok {
		row.Weight = &w
	}
	return row
}

func (f *Frame) value(col, i int) any {
	if col < 0 || col >= len(f.Fields) {
		return nil
	}
	values := f.Fields[col].Values
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

// FirstLocated returns the first row with a valid coordinate.
func (f *Frame) FirstLocated() (DataRow, error) {
	if f == nil {
		return DataRow{}, ErrEmptyFrame
	}
	cols, err := f.Resolve()
	if err != nil {
		return DataRow{}, err
	}
	n := len(f.Fields[cols.Lat].Values)
	for i := 0; i < n; i++ {
		if row := f.Row(cols, i); row.Valid {
			return row, nil
		}
	}
	return DataRow{}, ErrEmptyFrame
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	// Epoch milliseconds, the host's native time encoding.
	if ms, ok := toFloat(v); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}
