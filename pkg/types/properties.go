package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PropertyKind discriminates the variants of a PropertyValue.
type PropertyKind int

// Property value kinds. A zero PropertyValue has KindString with an empty
// string, so uninitialised values compare equal to the empty string.
const (
	KindString PropertyKind = iota
	KindNumber
	KindBool
	KindList
	KindMap
)

// PropertyValue is a tagged union for entity and relationship properties.
// Modelling properties as a closed set of variants (rather than
// map[string]interface{}) keeps merge comparisons and contradiction checks
// well-defined across types.
type PropertyValue struct {
	Kind PropertyKind

	Str  string
	Num  float64
	Bool bool
	List []PropertyValue
	Map  map[string]PropertyValue
}

// StringValue wraps a string as a PropertyValue.
func StringValue(s string) PropertyValue {
	return PropertyValue{Kind: KindString, Str: s}
}

// NumberValue wraps a number as a PropertyValue.
func NumberValue(n float64) PropertyValue {
	return PropertyValue{Kind: KindNumber, Num: n}
}

// BoolValue wraps a bool as a PropertyValue.
func BoolValue(b bool) PropertyValue {
	return PropertyValue{Kind: KindBool, Bool: b}
}

// ListValue wraps a list as a PropertyValue.
func ListValue(items ...PropertyValue) PropertyValue {
	return PropertyValue{Kind: KindList, List: items}
}

// MapValue wraps a nested map as a PropertyValue.
func MapValue(m map[string]PropertyValue) PropertyValue {
	return PropertyValue{Kind: KindMap, Map: m}
}

// Equal reports whether two property values are equal. Values of different
// kinds are never equal; lists compare element-wise in order, maps by key set
// and per-key equality.
func (v PropertyValue) Equal(o PropertyValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, val := range v.Map {
			other, ok := o.Map[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a value for logs and contradiction records.
func (v PropertyValue) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Map[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// MarshalJSON encodes the value as its natural JSON representation, so
// property maps stored as JSON columns remain readable by other tools.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		return json.Marshal(v.List)
	case KindMap:
		return json.Marshal(v.Map)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a natural JSON value into the matching variant.
// JSON null decodes as an empty string value.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pv, err := PropertyFromAny(raw)
	if err != nil {
		return err
	}
	*v = pv
	return nil
}

// PropertyFromAny converts a decoded JSON value (string, float64, bool,
// []interface{}, map[string]interface{}, or nil) into a PropertyValue.
func PropertyFromAny(raw interface{}) (PropertyValue, error) {
	switch val := raw.(type) {
	case nil:
		return StringValue(""), nil
	case string:
		return StringValue(val), nil
	case float64:
		return NumberValue(val), nil
	case bool:
		return BoolValue(val), nil
	case []interface{}:
		items := make([]PropertyValue, 0, len(val))
		for _, item := range val {
			pv, err := PropertyFromAny(item)
			if err != nil {
				return PropertyValue{}, err
			}
			items = append(items, pv)
		}
		return PropertyValue{Kind: KindList, List: items}, nil
	case map[string]interface{}:
		m := make(map[string]PropertyValue, len(val))
		for k, item := range val {
			pv, err := PropertyFromAny(item)
			if err != nil {
				return PropertyValue{}, err
			}
			m[k] = pv
		}
		return PropertyValue{Kind: KindMap, Map: m}, nil
	}
	return PropertyValue{}, fmt.Errorf("unsupported property value type %T", raw)
}

// Properties is a string-keyed map of property values.
type Properties map[string]PropertyValue

// Clone returns a shallow copy of the map. List and map variants share
// backing storage with the original; callers treat values as immutable.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
