package frame

import (
	"encoding/json"
	"fmt"
)

// Data is the host's data payload: one or more series, of which the map
// renders the first.
type Data struct {
	Series []Frame `json:"series" doc:"Data series; the first one is rendered"`
}

// Primary returns the first series, or an empty frame when there is none.
func (d Data) Primary() Frame {
	if len(d.Series) == 0 {
		return Frame{}
	}
	return d.Series[0]
}

// Decode parses a host data payload.
func Decode(body []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(body, &d); err != nil {
		return Data{}, fmt.Errorf("decoding frame data: %w", err)
	}
	return d, nil
}

// FromRows builds a frame column-wise from row-oriented query results.
func FromRows(name string, columns []string, rows [][]any) Frame {
	f := Frame{Name: name, Fields: make([]Field, len(columns))}
	for i, col := range columns {
		f.Fields[i] = Field{Name: col, Values: make([]any, 0, len(rows))}
	}
	for _, row := range rows {
		for i := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			f.Fields[i].Values = append(f.Fields[i].Values, v)
		}
	}
	return f
}
