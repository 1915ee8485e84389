package proseql

import "fmt"

// FieldType names the runtime shape a schema field must hold.
type FieldType int

const (
	// FieldAny accepts any non-nil value (or nil, if not Required).
	FieldAny FieldType = iota
	FieldString
	FieldNumber
	FieldBool
	FieldArray
	FieldObject
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "bool"
	case FieldArray:
		return "array"
	case FieldObject:
		return "object"
	default:
		return "any"
	}
}

// FieldSpec declares one field's shape and mutability within a Schema.
type FieldSpec struct {
	Type      FieldType
	Required  bool
	Immutable bool
	// Default, when non-nil, supplies a value for create() when the field
	// is absent from the candidate entity.
	Default func() any
}

// Schema is the decode contract for a collection: the source of truth for
// an entity's shape and types (§3). Decode validates and normalizes a raw
// candidate entity and is the point at which a value crosses the boundary
// between "whatever a caller handed in" and "what the collection engine
// trusts". There is no Encode step: committed entities are serialized as
// stored, and decoded and encoded entities share the one type M.
type Schema struct {
	Fields map[string]FieldSpec
	// SoftDelete records whether this schema declares a deletedAt field,
	// which gates whether soft-delete is available for the collection.
	SoftDelete bool
}

// Decode validates a candidate entity against the schema, applying field
// defaults for anything missing, and returns the normalized entity or a
// *ValidationError enumerating every field-scoped problem found.
func (s *Schema) Decode(collection string, candidate M) (M, error) {
	if s == nil {
		return candidate, nil
	}

	out := candidate.clone()
	var issues []FieldIssue

	for name, spec := range s.Fields {
		v, present := out[name]
		if !present || v == nil {
			if spec.Default != nil {
				out[name] = spec.Default()
				continue
			}
			if spec.Required {
				issues = append(issues, FieldIssue{Field: name, Message: "required field missing"})
			}
			continue
		}
		if !checkFieldType(v, spec.Type) {
			issues = append(issues, FieldIssue{
				Field:   name,
				Message: fmt.Sprintf("expected %s, got %T", spec.Type, v),
			})
		}
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Collection: collection, Issues: issues}
	}
	return out, nil
}

func checkFieldType(v any, t FieldType) bool {
	switch t {
	case FieldAny:
		return true
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		_, ok := toFloat64(v)
		return ok
	case FieldBool:
		_, ok := v.(bool)
		return ok
	case FieldArray:
		_, ok := v.([]any)
		return ok
	case FieldObject:
		_, ok := v.(M)
		if ok {
			return true
		}
		_, ok = v.(map[string]any)
		return ok
	default:
		return true
	}
}

// ImmutableFields returns the set of field names the schema marks
// immutable, always including "id" and "createdAt" per invariant 1-2.
func (s *Schema) ImmutableFields() map[string]bool {
	out := map[string]bool{FieldID: true, FieldCreatedAt: true}
	if s == nil {
		return out
	}
	for name, spec := range s.Fields {
		if spec.Immutable {
			out[name] = true
		}
	}
	return out
}
