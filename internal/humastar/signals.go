package humastar

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SignalName returns the Datastar signal for a struct field: prefix plus
// the `signal` tag, or the lowercased JSON name. Fields without a JSON name
// have no signal.
func SignalName(prefix string, sf reflect.StructField) (signal, jsonName string) {
	jsonName, _, _ = strings.Cut(sf.Tag.Get("json"), ",")
	if jsonName == "" || jsonName == "-" {
		return "", ""
	}
	suffix := strings.ToLower(jsonName)
	if sig := sf.Tag.Get("signal"); sig != "" {
		suffix = sig
	}
	return prefix + suffix, jsonName
}

// SignalMap flattens a struct into prefixed Datastar signals.
func SignalMap(prefix string, v any) (map[string]any, error) {
	fields, err := jsonFields(v)
	if err != nil {
		return nil, err
	}

	t := reflect.Indirect(reflect.ValueOf(v)).Type()
	out := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		signal, jsonName := SignalName(prefix, t.Field(i))
		if signal == "" {
			continue
		}
		if val, ok := fields[jsonName]; ok {
			out[signal] = val
		} else {
			out[signal] = reflect.Zero(t.Field(i).Type).Interface()
		}
	}
	return out, nil
}

// ApplySignals copies prefixed signals present in s onto the struct dst
// points to. Numbers typed as text are parsed; fields without a signal keep
// their value.
func ApplySignals(prefix string, s Signals, dst any) error {
	fields, err := jsonFields(dst)
	if err != nil {
		return err
	}

	t := reflect.Indirect(reflect.ValueOf(dst)).Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		signal, jsonName := SignalName(prefix, sf)
		if signal == "" || !s.Has(signal) {
			continue
		}
		val, err := coerce(s[signal], sf.Type.Kind())
		if err != nil {
			return fmt.Errorf("signal %s: %w", signal, err)
		}
		fields[jsonName] = val
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func jsonFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("signals need a struct: %w", err)
	}
	return fields, nil
}

// coerce adapts a signal value to the kind of its target field.
func coerce(v any, kind reflect.Kind) (any, error) {
	switch kind {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", s)
			}
			return f, nil
		}
	case reflect.String:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
	}
	return v, nil
}
