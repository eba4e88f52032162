// Package schema maps raw provider JSON objects into a connector's
// declared output fields: nested-path lookup, collection flattening and
// type coercion, emitted incrementally as a JSON array stream.
package schema

import (
	"strings"

	"github.com/vizydrop/gallery/pkg/errors"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

// Kind tags how a field value is coerced.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindDecimal  Kind = "decimal"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindBoolean  Kind = "boolean"
	KindID       Kind = "id"
)

// Field declares one output column: its name, where in the raw provider
// object its value lives (hyphen-delimited nested path), and how to coerce
// it. Fields are defined once per source and read-only at runtime.
type Field struct {
	Name        string
	ResponseLoc string
	Kind        Kind
}

// Schema is the ordered field list of one source.
type Schema []Field

// Record is one normalized output row. It marshals its fields in schema
// declaration order.
type Record struct {
	schema Schema
	values map[string]interface{}
}

// Get returns the coerced value of a field, or nil.
func (r *Record) Get(name string) interface{} {
	return r.values[name]
}

// MarshalJSON emits the record as an object with fields in schema order.
func (r *Record) MarshalJSON() ([]byte, error) {
	buf := jsonpool.GetBuffer()
	defer jsonpool.PutBuffer(buf)

	buf.WriteByte('{')
	for i, field := range r.schema {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := jsonpool.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := jsonpool.Marshal(r.values[field.Name])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Normalize resolves every declared field from the raw provider object.
// Missing fields yield nil values. A coercion failure fails the record,
// and with it the whole stream: no skip-and-continue semantics exist for
// analytic output.
func (s Schema) Normalize(raw map[string]interface{}) (*Record, error) {
	values := make(map[string]interface{}, len(s))
	for _, field := range s {
		resolved := resolve(raw, strings.Split(field.ResponseLoc, "-"))
		coerced, err := coerce(resolved, field.Kind)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData,
				"failed to normalize field "+field.Name)
		}
		values[field.Name] = coerced
	}
	return &Record{schema: s, values: values}, nil
}

// resolve walks the raw object along path segments. Collection nodes
// (arrays, or objects wrapping an "Items" array) fan out over their
// elements; the scalar leaves are joined with commas.
func resolve(node interface{}, segs []string) interface{} {
	if node == nil {
		return nil
	}
	if len(segs) == 0 {
		return node
	}

	switch v := node.(type) {
	case map[string]interface{}:
		if child, ok := v[segs[0]]; ok {
			return resolve(child, segs[1:])
		}
		if items, ok := v["Items"].([]interface{}); ok {
			return fanOut(items, segs)
		}
		return nil
	case []interface{}:
		return fanOut(v, segs)
	default:
		// Scalar reached with path remaining: the declared path does
		// not match this record's shape.
		return nil
	}
}

// fanOut resolves the remaining path against every element of a
// collection and joins the scalar results.
func fanOut(items []interface{}, segs []string) interface{} {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		leaf := resolve(item, segs)
		if leaf == nil {
			continue
		}
		parts = append(parts, stringify(leaf))
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, ",")
}
