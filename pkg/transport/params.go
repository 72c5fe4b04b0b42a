package transport

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// Params are request parameters. Scalars are formatted with fmt, slices and
// arrays expand to repeated keys and nested maps expand to key[sub] keys.
type Params map[string]any

// Values flattens params into url.Values.
func (p Params) Values() url.Values {
	values := url.Values{}
	for key, value := range p {
		addValue(values, key, value)
	}
	return values
}

// Encode returns the form encoding of params with keys sorted, so equal
// param sets always encode identically.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	return p.Values().Encode()
}

func addValue(values url.Values, key string, value any) {
	if value == nil {
		values.Add(key, "")
		return
	}

	switch v := value.(type) {
	case string:
		values.Add(key, v)
		return
	case []string:
		for _, s := range v {
			values.Add(key, s)
		}
		return
	case fmt.Stringer:
		values.Add(key, v.String())
		return
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			values.Add(key, string(rv.Bytes()))
			return
		}
		for i := 0; i < rv.Len(); i++ {
			addValue(values, key, rv.Index(i).Interface())
		}
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byName := make(map[string]reflect.Value, rv.Len())
		for _, mk := range rv.MapKeys() {
			name := fmt.Sprint(mk.Interface())
			keys = append(keys, name)
			byName[name] = mk
		}
		sort.Strings(keys)
		for _, name := range keys {
			addValue(values, key+"["+name+"]", rv.MapIndex(byName[name]).Interface())
		}
	case reflect.Pointer:
		if rv.IsNil() {
			values.Add(key, "")
			return
		}
		addValue(values, key, rv.Elem().Interface())
	default:
		values.Add(key, fmt.Sprint(value))
	}
}

// AppendQuery joins rawURL and an encoded query with "?" or "&".
func AppendQuery(rawURL, query string) string {
	if query == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}
