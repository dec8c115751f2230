// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagBinder is implemented by types that register their own flags.
// [BindFlags] calls AddFlags for struct fields whose pointer implements
// it instead of reading their tags.
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// FlagsFromParams returns a ContinueOnError flag set bound to the
// tagged fields of params, a pointer to a struct. It panics when the
// struct's tags are invalid, which is a programming error.
//
//	var params roomsParams
//	command := &cli.Command{
//	    Flags: func() *pflag.FlagSet {
//	        return cli.FlagsFromParams("rooms", &params)
//	    },
//	    Run: func(ctx context.Context, args []string) error {
//	        // params is populated here
//	    },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers a flag on flagSet for every tagged field of
// params, a pointer to a struct.
//
// Tags:
//
//	flag:"name" or flag:"name,n"   long name and optional shorthand
//	desc:"text"                    help text
//	default:"value"                default, parsed as the field's type
//
// Field types are string, bool, int, [time.Duration], and []string (a
// comma-separated default). Embedded structs are bound recursively, so
// shared flag groups are declared once and embedded; struct fields
// implementing [FlagBinder] bind themselves.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()
	for index := range structType.NumField() {
		field := structType.Field(index)
		fieldValue := structValue.Field(index)

		if field.Type.Kind() == reflect.Struct {
			if field.IsExported() {
				if binder, ok := fieldValue.Addr().Interface().(FlagBinder); ok {
					binder.AddFlags(flagSet)
					continue
				}
			}
			if field.Anonymous {
				if err := bindStruct(fieldValue, flagSet); err != nil {
					return fmt.Errorf("embedded %s: %w", field.Name, err)
				}
				continue
			}
		}

		tag := field.Tag.Get("flag")
		if tag == "" {
			continue
		}
		name, shorthand, _ := strings.Cut(tag, ",")
		if err := bindField(fieldValue.Addr().Interface(), flagSet, name, shorthand,
			field.Tag.Get("desc"), field.Tag.Get("default")); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bindField(target any, flagSet *pflag.FlagSet, name, shorthand, usage, fallback string) error {
	invalid := func(err error) error {
		return fmt.Errorf("default %q for --%s: %w", fallback, name, err)
	}

	switch pointer := target.(type) {
	case *string:
		flagSet.StringVarP(pointer, name, shorthand, fallback, usage)
	case *bool:
		value := false
		if fallback != "" {
			parsed, err := strconv.ParseBool(fallback)
			if err != nil {
				return invalid(err)
			}
			value = parsed
		}
		flagSet.BoolVarP(pointer, name, shorthand, value, usage)
	case *int:
		value := 0
		if fallback != "" {
			parsed, err := strconv.Atoi(fallback)
			if err != nil {
				return invalid(err)
			}
			value = parsed
		}
		flagSet.IntVarP(pointer, name, shorthand, value, usage)
	case *time.Duration:
		var value time.Duration
		if fallback != "" {
			parsed, err := time.ParseDuration(fallback)
			if err != nil {
				return invalid(err)
			}
			value = parsed
		}
		flagSet.DurationVarP(pointer, name, shorthand, value, usage)
	case *[]string:
		var value []string
		if fallback != "" {
			value = strings.Split(fallback, ",")
		}
		flagSet.StringSliceVarP(pointer, name, shorthand, value, usage)
	default:
		return fmt.Errorf("unsupported type %T for flag --%s", target, name)
	}
	return nil
}
