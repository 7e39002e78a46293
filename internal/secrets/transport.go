package secrets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/nextlevelbuilder/goclaw-secrets/pkg/protocol"
)

// maxDepth bounds reflective traversal so cyclic structures terminate.
const maxDepth = 32

// Redactor is an independent, format-heuristic redaction pass for values
// that look like secrets but were never registered.
type Redactor interface {
	Redact(text string) string
}

// Transport applies registry masking to every string reachable from a
// value, then optionally a heuristic pass. Value masking always runs first
// and the heuristic pass never sees placeholder tokens, so a placeholder can
// always be restored by Unmask.
type Transport struct {
	reg       *Registry
	heuristic Redactor
}

// NewTransport creates a transport over r. heuristic may be nil.
func NewTransport(r *Registry, heuristic Redactor) *Transport {
	return &Transport{reg: r, heuristic: heuristic}
}

// Registry returns the registry backing the transport.
func (t *Transport) Registry() *Registry { return t.reg }

// MaskString masks one string: registered values first, then heuristics.
func (t *Transport) MaskString(s string) string {
	if t == nil || s == "" {
		return s
	}
	if t.reg != nil {
		s = t.reg.Mask(s)
	}
	if t.heuristic != nil {
		s = redactBetweenPlaceholders(s, t.heuristic)
	}
	return s
}

// redactBetweenPlaceholders runs h over the text between placeholder tokens,
// leaving the tokens themselves untouched.
func redactBetweenPlaceholders(s string, h Redactor) string {
	return betweenPlaceholders(s, h.Redact)
}

// betweenPlaceholders applies f to each run of text outside well-formed
// placeholder tokens.
func betweenPlaceholders(s string, f func(string) string) string {
	if !strings.Contains(s, protocol.PlaceholderPrefix) {
		return f(s)
	}
	locs := protocol.PlaceholderRE.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return f(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	cursor := 0
	for _, loc := range locs {
		b.WriteString(f(s[cursor:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		cursor = loc[1]
	}
	b.WriteString(f(s[cursor:]))
	return b.String()
}

// MaskValue masks every string field of v. Maps, slices and values reached
// through pointers are modified in place; structs and arrays passed by
// value come back as masked copies. Non-string scalars are returned as is.
func (t *Transport) MaskValue(v any) any {
	if t == nil {
		return v
	}
	return t.maskAny(v, 0)
}

func (t *Transport) maskAny(v any, depth int) any {
	if depth > maxDepth {
		return v
	}
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return t.MaskString(val)
	case []string:
		for i := range val {
			val[i] = t.MaskString(val[i])
		}
		return val
	case map[string]string:
		for k, s := range val {
			val[k] = t.MaskString(s)
		}
		rekey(val, t.MaskString)
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = t.maskAny(item, depth+1)
		}
		rekey(val, t.MaskString)
		return val
	case []any:
		for i := range val {
			val[i] = t.maskAny(val[i], depth+1)
		}
		return val
	case json.RawMessage:
		return t.maskJSON(val)
	case []byte:
		return []byte(t.MaskString(string(val)))
	case error:
		return t.MaskString(val.Error())
	case json.Number:
		return val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return reflect.ValueOf(t.MaskString(rv.String())).Convert(rv.Type()).Interface()
	case reflect.Pointer:
		if !rv.IsNil() {
			t.walk(rv.Elem(), depth+1)
		}
		return v
	case reflect.Slice, reflect.Map:
		t.walk(rv, depth+1)
		return v
	case reflect.Struct, reflect.Array:
		cp := reflect.New(rv.Type()).Elem()
		cp.Set(rv)
		t.walk(cp, depth+1)
		return cp.Interface()
	}
	return v
}

// MaskCopy returns a masked deep copy of v and leaves v untouched. The copy
// is normalized through JSON (maps, slices, json.Number, strings), so it
// suits serialized sinks such as log records. Values that cannot be
// marshaled are rendered with fmt and masked as text.
func (t *Transport) MaskCopy(v any) any {
	if t == nil {
		return v
	}
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return t.MaskString(val)
	case error:
		return t.MaskString(val.Error())
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return t.MaskString(fmt.Sprintf("%+v", v))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return t.MaskString(string(raw))
	}
	return t.maskAny(doc, 0)
}

// maskJSON masks a JSON document by value so that escaped forms inside
// string literals are handled; invalid JSON is masked as plain text.
func (t *Transport) maskJSON(raw json.RawMessage) json.RawMessage {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return json.RawMessage(t.MaskString(string(raw)))
	}
	out, err := json.Marshal(t.maskAny(doc, 0))
	if err != nil {
		return json.RawMessage(t.MaskString(string(raw)))
	}
	return out
}

// walk masks strings reachable from rv, setting them where rv is settable.
func (t *Transport) walk(rv reflect.Value, depth int) {
	if depth > maxDepth || !rv.IsValid() {
		return
	}
	switch rv.Kind() {
	case reflect.String:
		if rv.CanSet() {
			rv.SetString(t.MaskString(rv.String()))
		}
	case reflect.Pointer:
		if !rv.IsNil() {
			t.walk(rv.Elem(), depth+1)
		}
	case reflect.Interface:
		if rv.IsNil() || !rv.CanSet() {
			return
		}
		masked := t.maskAny(rv.Elem().Interface(), depth+1)
		if masked == nil {
			return
		}
		if mv := reflect.ValueOf(masked); mv.Type().AssignableTo(rv.Type()) {
			rv.Set(mv)
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if rv.Type().Field(i).IsExported() {
				t.walk(rv.Field(i), depth+1)
			}
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < rv.Len(); i++ {
			t.walk(rv.Index(i), depth+1)
		}
	case reflect.Map:
		if rv.IsNil() {
			return
		}
		keyType := rv.Type().Key()
		type rename struct{ from, to reflect.Value }
		var renames []rename
		iter := rv.MapRange()
		for iter.Next() {
			cp := reflect.New(rv.Type().Elem()).Elem()
			cp.Set(iter.Value())
			t.walk(cp, depth+1)
			rv.SetMapIndex(iter.Key(), cp)
			if keyType.Kind() == reflect.String {
				if mk := t.MaskString(iter.Key().String()); mk != iter.Key().String() {
					renames = append(renames, rename{from: iter.Key(), to: reflect.ValueOf(mk).Convert(keyType)})
				}
			}
		}
		for _, rn := range renames {
			v := rv.MapIndex(rn.from)
			rv.SetMapIndex(rn.from, reflect.Value{})
			rv.SetMapIndex(rn.to, v)
		}
	}
}

// rekey renames keys that contain registered values. Renames are collected
// first so a masked key is never visited, and masked, a second time.
func rekey[V any](m map[string]V, mask func(string) string) {
	var from []string
	for k := range m {
		if mask(k) != k {
			from = append(from, k)
		}
	}
	for _, k := range from {
		v := m[k]
		delete(m, k)
		m[mask(k)] = v
	}
}
