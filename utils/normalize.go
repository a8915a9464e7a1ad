package utils

import (
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// NormalizeDTO trims string and *string fields on a pointer-to-struct DTO and
// descends into nested structs and slices of structs (e.g. line items).
// Blank *string fields become nil so optional text is stored as NULL.
// Decimal fields are left as parsed; amounts are validated, never silently rounded.
func NormalizeDTO(dto any) {
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	normalizeValue(v.Elem())
}

func normalizeValue(s reflect.Value) {
	if s.Kind() != reflect.Struct || s.Type() == decimalType {
		return
	}
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			switch f.Elem().Kind() {
			case reflect.String:
				trimmed := strings.TrimSpace(f.Elem().String())
				if trimmed == "" {
					f.Set(reflect.Zero(f.Type()))
					continue
				}
				f.Elem().SetString(trimmed)
			case reflect.Struct:
				normalizeValue(f.Elem())
			}
		case reflect.Struct:
			normalizeValue(f)
		case reflect.Slice:
			for j := 0; j < f.Len(); j++ {
				normalizeValue(f.Index(j))
			}
		}
	}
}
