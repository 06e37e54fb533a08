// Package clicfg fills configuration structs from urfave/cli flags named by
// `flag` struct tags.
package clicfg

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
)

var ErrCannotParseFlags = errors.New("cannot parse flags")

// ParseFlags sets every tagged field of the struct s points to from the flag
// of the same name. Fields without a tag are left alone.
func ParseFlags(c *cli.Command, s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Pointer {
		return fmt.Errorf("%w: expected pointer to struct, got %T", ErrCannotParseFlags, s)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("%w: expected pointer to struct, got pointer to %s", ErrCannotParseFlags, v.Kind())
	}

	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		name := field.Tag.Get("flag")
		if name == "" {
			continue
		}

		switch fv.Kind() {
		case reflect.String:
			fv.SetString(c.String(name))
		case reflect.Bool:
			fv.SetBool(c.Bool(name))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if field.Type == reflect.TypeFor[time.Duration]() {
				fv.SetInt(int64(c.Duration(name)))
				continue
			}
			fv.SetInt(int64(c.Int(name)))
		default:
			raw := c.String(name)
			if raw == "" {
				continue
			}
			if err := setFromString(fv, raw); err != nil {
				return fmt.Errorf("%w: field %s: %w", ErrCannotParseFlags, field.Name, err)
			}
		}
	}
	return nil
}

func setFromString(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		return fmt.Errorf("unsupported type: %s", fv.Kind())
	}
	return nil
}
