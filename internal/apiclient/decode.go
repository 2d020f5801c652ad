package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// naiveLayouts are accepted in addition to RFC 3339; the backend emits
// timezone-less ISO timestamps holding practice wall-clock time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// naiveZone marks a decoded timestamp that carried no offset. Localize
// moves such values into the display location.
var naiveZone = time.FixedZone("naive", 0)

var timeType = reflect.TypeOf(time.Time{})

type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t, err := ParseTimestamp(raw, naiveZone)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

func (f *flexTime) ptr() *time.Time {
	if f == nil || f.Time.IsZero() {
		return nil
	}
	t := f.Time
	return &t
}

// ParseTimestamp parses RFC 3339 or a naive ISO timestamp, which is read
// as wall-clock time in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognized format %q", raw)
}

// Localize rewrites every offset-less timestamp decoded into v as the same
// wall-clock time in loc. v is usually a pointer; other values are walked
// but cannot be modified.
func Localize(v any, loc *time.Location) {
	if v == nil {
		return
	}
	if loc == nil {
		loc = time.Local
	}
	localizeValue(reflect.ValueOf(v), loc)
}

func localizeValue(v reflect.Value, loc *time.Location) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			localizeValue(v.Elem(), loc)
		}
	case reflect.Struct:
		if v.Type() == timeType {
			t, ok := v.Interface().(time.Time)
			if ok && v.CanSet() && t.Location() == naiveZone {
				v.Set(reflect.ValueOf(time.Date(t.Year(), t.Month(), t.Day(),
					t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)))
			}
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				localizeValue(v.Field(i), loc)
			}
		}
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < v.Len(); i++ {
			localizeValue(v.Index(i), loc)
		}
	}
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under one of keys.
func decodeList[T any](data []byte, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return nonNilSlice(items), nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	for _, key := range keys {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return nonNilSlice(items), nil
	}
	return []T{}, nil
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
