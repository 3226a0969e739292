// Package env contains a function to load configuration from environment.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// Unmarshaler can be implemented to override the unmarshaling process.
type Unmarshaler interface {
	UnmarshalEnv(key string, v string) error
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "true":
		return true, nil

	case "no", "false":
		return false, nil
	}

	return false, fmt.Errorf("invalid value '%s'", v)
}

func setValue(v reflect.Value, ev string) error {
	if i, ok := v.Addr().Interface().(Unmarshaler); ok {
		return i.UnmarshalEnv("", ev)
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(ev)

	case reflect.Int:
		iv, err := strconv.ParseInt(ev, 10, 32)
		if err != nil {
			return err
		}
		v.SetInt(iv)

	case reflect.Float64:
		fv, err := strconv.ParseFloat(ev, 64)
		if err != nil {
			return err
		}
		v.SetFloat(fv)

	case reflect.Bool:
		bv, err := parseBool(ev)
		if err != nil {
			return err
		}
		v.SetBool(bv)

	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported type: %v", v.Type())
		}

		if ev == "" {
			v.Set(reflect.MakeSlice(v.Type(), 0, 0))
			return nil
		}

		parts := strings.Split(ev, ",")
		sl := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, p := range parts {
			sl.Index(i).SetString(p)
		}
		v.Set(sl)

	default:
		return fmt.Errorf("unsupported type: %v", v.Type())
	}

	return nil
}

func loadWithEnv(env map[string]string, prefix string, dest any) error {
	rv := reflect.ValueOf(dest).Elem()
	rt := rv.Type()

	for i := range rt.NumField() {
		f := rt.Field(i)

		jsonTag := strings.Split(f.Tag.Get("json"), ",")[0]
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		key := prefix + "_" + strings.ToUpper(jsonTag)

		ev, ok := env[key]
		if !ok {
			continue
		}

		err := setValue(rv.Field(i), ev)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	return nil
}

func envToMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Load overrides the fields of a struct with environment variables.
// The variable name of each field is the prefix followed by
// an underscore and the upper-case JSON key, for instance AVPLAY_SYNCMODE.
func Load(prefix string, dest any) error {
	return loadWithEnv(envToMap(), prefix, dest)
}
