// Package jsonwrapper contains a strict JSON unmarshaler.
package jsonwrapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

func jsonKey(f reflect.StructField) string {
	return strings.Split(f.Tag.Get("json"), ",")[0]
}

// resetSlice empties a slice that is about to be decoded.
// encoding/json otherwise keeps elements beyond the decoded ones
// and accepts null.
func resetSlice(v reflect.Value, raw json.RawMessage, name string) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if name != "" {
			return fmt.Errorf("'%s' cannot be null", name)
		}
		return fmt.Errorf("value cannot be null")
	}

	v.Set(reflect.Zero(v.Type()))
	return nil
}

func prepare(v reflect.Value, buf []byte) error {
	switch v.Kind() {
	case reflect.Slice:
		return resetSlice(v, buf, "")

	case reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(buf, &fields); err != nil {
			return nil
		}

		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if f.Type.Kind() != reflect.Slice {
				continue
			}

			key := jsonKey(f)
			raw, ok := fields[key]
			if !ok {
				continue
			}

			if err := resetSlice(v.Field(i), raw, key); err != nil {
				return err
			}
		}
	}

	return nil
}

// Unmarshal decodes JSON into dest.
// Unlike json.Unmarshal, it rejects unknown fields, replaces
// slices instead of merging them and refuses to set slices to null.
func Unmarshal(buf []byte, dest any) error {
	err := prepare(reflect.ValueOf(dest).Elem(), buf)
	if err != nil {
		return err
	}

	d := json.NewDecoder(bytes.NewReader(buf))
	d.DisallowUnknownFields()
	return d.Decode(dest)
}
