package models

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// Merge copies every present, non-empty field of patch onto dst and returns
// the JSON names of the fields it wrote. Empty values (nil pointers, blank
// strings, zero times, empty maps) never overwrite stored data. Map fields
// merge per key under the same rule. dst and patch must share a concrete type;
// identity fields (tagged merge:"-") are left to the caller.
func Merge(dst, patch Entity) []string {
	dv := reflect.ValueOf(dst)
	pv := reflect.ValueOf(patch)
	if dv.Type() != pv.Type() || dv.IsNil() || pv.IsNil() {
		return nil
	}
	var changed []string
	mergeStruct(dv.Elem(), pv.Elem(), &changed)
	return changed
}

func mergeStruct(dst, src reflect.Value, changed *[]string) {
	t := src.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("merge") == "-" {
			continue
		}
		name := jsonName(f)
		sv := src.Field(i)
		dv := dst.Field(i)
		if sv.Kind() == reflect.Map {
			mergeMap(dv, sv, name, changed)
			continue
		}
		if IsEmptyValue(sv) {
			continue
		}
		dv.Set(cloneValue(sv))
		*changed = append(*changed, name)
	}
}

func mergeMap(dst, src reflect.Value, name string, changed *[]string) {
	if src.Len() == 0 {
		return
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(src.Type(), src.Len()))
	}
	iter := src.MapRange()
	for iter.Next() {
		if IsEmptyValue(iter.Value()) {
			continue
		}
		dst.SetMapIndex(iter.Key(), iter.Value())
		*changed = append(*changed, name+"."+iter.Key().String())
	}
}

// cloneValue detaches pointer fields so a stored record never aliases the
// caller's patch.
func cloneValue(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Ptr {
		return v
	}
	c := reflect.New(v.Type().Elem())
	c.Elem().Set(v.Elem())
	return c
}

var timeType = reflect.TypeOf(time.Time{})

// IsEmptyValue is the single emptiness predicate shared by merge and
// completion tracking. An explicit false or 0 behind a pointer is a value.
func IsEmptyValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return true
		}
		if v.Elem().Kind() == reflect.String {
			return strings.TrimSpace(v.Elem().String()) == ""
		}
		return false
	case reflect.Map, reflect.Slice:
		return v.IsNil() || v.Len() == 0
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).IsZero()
		}
		return v.IsZero()
	default:
		return v.IsZero()
	}
}

// FieldValue returns the value of the field whose JSON name is field.
// "extra.<key>" addresses a key of a map field named extra.
func FieldValue(e Entity, field string) (reflect.Value, bool) {
	if e == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(e)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, false
	}
	v = v.Elem()
	name, key, nested := strings.Cut(field, ".")
	idx, ok := fieldIndex(v.Type())[name]
	if !ok {
		return reflect.Value{}, false
	}
	fv := v.FieldByIndex(idx)
	if !nested {
		return fv, true
	}
	if fv.Kind() != reflect.Map || fv.IsNil() {
		return reflect.Value{}, false
	}
	mv := fv.MapIndex(reflect.ValueOf(key))
	return mv, mv.IsValid()
}

// IsFilled reports whether field is present and non-empty on e.
func IsFilled(e Entity, field string) bool {
	v, ok := FieldValue(e, field)
	return ok && !IsEmptyValue(v)
}

// StringField returns the string form of a field, or "" when absent.
func StringField(e Entity, field string) string {
	v, ok := FieldValue(e, field)
	if !ok || IsEmptyValue(v) {
		return ""
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	if s, ok := v.Interface().(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// BoolField reports whether a bool (or *bool) field is set to true.
func BoolField(e Entity, field string) bool {
	v, ok := FieldValue(e, field)
	if !ok || IsEmptyValue(v) {
		return false
	}
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v.Kind() == reflect.Bool && v.Bool()
}

// HasField reports whether entities of kind k declare field.
func HasField(k Kind, field string) bool {
	e, err := New(k)
	if err != nil {
		return false
	}
	name, _, _ := strings.Cut(field, ".")
	_, ok := fieldIndex(reflect.TypeOf(e).Elem())[name]
	return ok
}

var fieldIndexCache sync.Map // reflect.Type -> map[string][]int

func fieldIndex(t reflect.Type) map[string][]int {
	if cached, ok := fieldIndexCache.Load(t); ok {
		return cached.(map[string][]int)
	}
	index := make(map[string][]int)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		index[jsonName(f)] = f.Index
	}
	fieldIndexCache.Store(t, index)
	return index
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
