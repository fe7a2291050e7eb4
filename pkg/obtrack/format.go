package obtrack

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Formatter renders values into the textual form stored in history lists
type Formatter func(v any) string

// FormatArgs renders call arguments comma-separated, the way they appear
// between the parentheses of a replay line. Strings are quoted so that
// store("42") and store(42) stay distinguishable.
func FormatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	return strings.Join(parts, ", ")
}

// FormatResult renders a call result. Strings are written raw, so a key
// returned by Cache.Store replays as the key itself. Multiple results
// (delivered as []any) are parenthesized.
func FormatResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case []any:
		return "(" + FormatArgs(v) + ")"
	default:
		return formatValue(result)
	}
}

func formatValue(arg any) string {
	if arg == nil {
		return "nil"
	}

	v := reflect.ValueOf(arg)
	t := v.Type()

	if b, ok := arg.([]byte); ok {
		return strconv.Quote(string(b))
	}
	if t.Kind() == reflect.String {
		return strconv.Quote(v.String())
	}
	if t.Kind() == reflect.Ptr && v.IsNil() {
		return "nil"
	}
	switch s := arg.(type) {
	case error:
		return s.Error()
	case fmt.Stringer:
		return s.String()
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Ptr:
		return "&" + formatValue(v.Elem().Interface())
	case reflect.Slice, reflect.Array:
		return formatSequence(v)
	case reflect.Map:
		return formatMap(v)
	case reflect.Struct:
		return formatStruct(v, t)
	default:
		return fmt.Sprintf("%v", arg)
	}
}

func formatSequence(v reflect.Value) string {
	elements := make([]string, v.Len())
	for i := range elements {
		elements[i] = formatElement(v.Index(i))
	}
	return "[" + strings.Join(elements, ", ") + "]"
}

// formatMap sorts entries by their rendered key so output is stable
func formatMap(v reflect.Value) string {
	pairs := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, formatElement(iter.Key())+": "+formatElement(iter.Value()))
	}
	sort.Strings(pairs)
	return "map[" + strings.Join(pairs, ", ") + "]"
}

func formatStruct(v reflect.Value, t reflect.Type) string {
	var fields []string
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fields = append(fields, field.Name+": "+formatElement(v.Field(i)))
	}

	name := t.Name()
	if name == "" {
		name = "struct"
	}
	return name + "{" + strings.Join(fields, ", ") + "}"
}

func formatElement(v reflect.Value) string {
	if !v.IsValid() || !v.CanInterface() {
		return "?"
	}
	if v.Kind() == reflect.Interface && v.IsNil() {
		return "nil"
	}
	return formatValue(v.Interface())
}
