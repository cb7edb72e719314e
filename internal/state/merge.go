package state

import (
	"fmt"
	"reflect"

	"github.com/aretw0/troupe/pkg/domain"
)

// Policy decides how an incoming field value combines with the current one.
type Policy int

const (
	// Replace overwrites the current value.
	Replace Policy = iota
	// Append concatenates the incoming slice onto the current one.
	Append
	// KeepIfNil replaces the current value unless the incoming value is nil.
	KeepIfNil
)

func (p Policy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Append:
		return "append"
	case KeepIfNil:
		return "keep_if_nil"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Table maps each mergeable field to its policy.
type Table map[domain.Field]Policy

// DefaultTable is the merge policy of the pipeline.
var DefaultTable = Table{
	domain.FieldParsedInput:       Replace,
	domain.FieldWorldState:        KeepIfNil,
	domain.FieldActiveCharacters:  Replace,
	domain.FieldCharacterContexts: Replace,
	domain.FieldPersonaOutputs:    Append,
	domain.FieldFormatCheckPassed: Replace,
	domain.FieldRetryCount:        Replace,
	domain.FieldFinalOutput:       Replace,
	domain.FieldError:             Replace,
}

// MergeError reports an update that violates the field's type or policy.
// It indicates a defect in the stage that produced the update.
type MergeError struct {
	Field  domain.Field
	Policy Policy
	Value  any
	Reason string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s (%s): %s (got %T)", e.Field, e.Policy, e.Reason, e.Value)
}

// binding knows how to read and write one field of the aggregate.
type binding struct {
	read  func(s *domain.GraphState) any
	write func(s *domain.GraphState, v any) bool
	// join concatenates two values; nil for fields that cannot be appended.
	join func(cur, add any) (any, bool)
}

var bindings = map[domain.Field]binding{
	domain.FieldParsedInput: {
		read: func(s *domain.GraphState) any { return s.ParsedInput },
		write: func(s *domain.GraphState, v any) bool {
			p, ok := v.(*domain.ParsedInput)
			s.ParsedInput = p
			return ok
		},
	},
	domain.FieldWorldState: {
		read: func(s *domain.GraphState) any { return s.WorldState },
		write: func(s *domain.GraphState, v any) bool {
			w, ok := v.(*domain.WorldState)
			s.WorldState = w.Clone()
			return ok
		},
	},
	domain.FieldActiveCharacters: {
		read: func(s *domain.GraphState) any { return s.ActiveCharacters },
		write: func(s *domain.GraphState, v any) bool {
			names, ok := v.([]string)
			s.ActiveCharacters = append([]string(nil), names...)
			return ok
		},
		join: func(cur, add any) (any, bool) {
			a, ok1 := cur.([]string)
			b, ok2 := add.([]string)
			return append(append([]string(nil), a...), b...), ok1 && ok2
		},
	},
	domain.FieldCharacterContexts: {
		read: func(s *domain.GraphState) any { return s.CharacterContexts },
		write: func(s *domain.GraphState, v any) bool {
			m, ok := v.(map[string]string)
			s.CharacterContexts = make(map[string]string, len(m))
			for k, c := range m {
				s.CharacterContexts[k] = c
			}
			return ok
		},
	},
	domain.FieldPersonaOutputs: {
		read: func(s *domain.GraphState) any { return s.PersonaOutputs },
		write: func(s *domain.GraphState, v any) bool {
			outs, ok := v.([]domain.PersonaOutput)
			s.PersonaOutputs = append([]domain.PersonaOutput(nil), outs...)
			return ok
		},
		join: func(cur, add any) (any, bool) {
			a, ok1 := cur.([]domain.PersonaOutput)
			b, ok2 := add.([]domain.PersonaOutput)
			return append(append([]domain.PersonaOutput(nil), a...), b...), ok1 && ok2
		},
	},
	domain.FieldFormatCheckPassed: {
		read: func(s *domain.GraphState) any { return s.FormatCheckPassed },
		write: func(s *domain.GraphState, v any) bool {
			b, ok := v.(bool)
			s.FormatCheckPassed = b
			return ok
		},
	},
	domain.FieldRetryCount: {
		read: func(s *domain.GraphState) any { return s.RetryCount },
		write: func(s *domain.GraphState, v any) bool {
			n, ok := v.(int)
			s.RetryCount = n
			return ok
		},
	},
	domain.FieldFinalOutput: {
		read: func(s *domain.GraphState) any { return s.FinalOutput },
		write: func(s *domain.GraphState, v any) bool {
			out, ok := v.(string)
			s.FinalOutput = out
			return ok
		},
	},
	domain.FieldError: {
		read: func(s *domain.GraphState) any { return s.Error },
		write: func(s *domain.GraphState, v any) bool {
			msg, ok := v.(string)
			s.Error = msg
			return ok
		},
	},
}

// Merge applies an update to a copy of the state according to the table.
// The input state is never modified.
func (t Table) Merge(current domain.GraphState, update domain.Update) (domain.GraphState, error) {
	next := current.Clone()
	for field, value := range update {
		b, ok := bindings[field]
		if !ok {
			return current, &MergeError{Field: field, Value: value, Reason: "unknown field"}
		}
		policy, ok := t[field]
		if !ok {
			return current, &MergeError{Field: field, Value: value, Reason: "no policy for field"}
		}

		switch policy {
		case KeepIfNil:
			if isNil(value) {
				continue
			}
		case Append:
			if b.join == nil {
				return current, &MergeError{Field: field, Policy: policy, Value: value, Reason: "field cannot be appended"}
			}
			if isNil(value) {
				continue
			}
			joined, ok := b.join(b.read(&next), value)
			if !ok {
				return current, &MergeError{Field: field, Policy: policy, Value: value, Reason: "type mismatch"}
			}
			value = joined
		}

		if !b.write(&next, value) {
			return current, &MergeError{Field: field, Policy: policy, Value: value, Reason: "type mismatch"}
		}
	}
	return next, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
