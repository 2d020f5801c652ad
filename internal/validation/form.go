package validation

import (
	"sort"
	"strings"
)

// Field binds a form field name to its ordered rules.
type Field struct {
	Name  string
	Rules []Rule
}

// Schema is the ordered rule set of a form.
type Schema []Field

func (s Schema) rules(name string) []Rule {
	for _, f := range s {
		if f.Name == name {
			return f.Rules
		}
	}
	return nil
}

// Errors maps field names to the first failing rule's message.
type Errors struct {
	Fields map[string]string `json:"fields"`
}

func (e *Errors) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Check validates every field of values against the schema and returns
// nil when all pass.
func (s Schema) Check(values map[string]string) *Errors {
	var errs map[string]string
	for _, f := range s {
		if r := Validate(values[f.Name], f.Rules...); !r.IsValid {
			if errs == nil {
				errs = make(map[string]string)
			}
			errs[f.Name] = r.Message
		}
	}
	if errs == nil {
		return nil
	}
	return &Errors{Fields: errs}
}

// FieldState is a field's position in untouched -> touched(valid) <-> touched(invalid).
type FieldState string

const (
	Untouched      FieldState = "untouched"
	TouchedValid   FieldState = "valid"
	TouchedInvalid FieldState = "invalid"
)

// Form tracks values, errors and touched flags for one form. Validation
// runs on Blur and Submit only; Change merely clears a stale message.
// A Form is not safe for concurrent use.
type Form struct {
	schema  Schema
	initial map[string]string
	values  map[string]string
	errors  map[string]string
	touched map[string]bool
	valid   bool
}

func NewForm(schema Schema, initial map[string]string) *Form {
	f := &Form{schema: schema, initial: copyValues(initial)}
	f.Reset()
	return f
}

// Change records a new value and clears the field's error without
// re-validating. A cleared error does not mean the field is valid.
func (f *Form) Change(name, value string) {
	f.values[name] = value
	if f.errors[name] != "" {
		f.errors[name] = ""
	}
}

// Blur marks the field touched and validates it alone.
func (f *Form) Blur(name string) Result {
	f.touched[name] = true
	r := Validate(f.values[name], f.schema.rules(name)...)
	if r.IsValid {
		f.errors[name] = ""
	} else {
		f.errors[name] = r.Message
	}
	return r
}

// Submit validates every field, marks all of them touched and reports
// whether the form may be submitted.
func (f *Form) Submit() bool {
	for _, field := range f.schema {
		f.touched[field.Name] = true
	}
	return f.validateAll()
}

// SetValues replaces every value and re-validates without touching fields.
func (f *Form) SetValues(values map[string]string) {
	f.values = copyValues(values)
	f.validateAll()
}

// Reset restores the initial values and clears errors and touched flags.
func (f *Form) Reset() {
	f.values = copyValues(f.initial)
	f.errors = make(map[string]string)
	f.touched = make(map[string]bool)
	f.valid = f.schema.Check(f.values) == nil
}

// Errors returns the messages of touched fields only.
func (f *Form) Errors() map[string]string {
	out := make(map[string]string)
	for name, msg := range f.errors {
		if msg != "" && f.touched[name] {
			out[name] = msg
		}
	}
	return out
}

func (f *Form) Values() map[string]string { return copyValues(f.values) }

func (f *Form) Value(name string) string { return f.values[name] }

// Valid reports the verdict of the last whole-form validation.
func (f *Form) Valid() bool { return f.valid }

func (f *Form) Touched(name string) bool { return f.touched[name] }

func (f *Form) State(name string) FieldState {
	if !f.touched[name] {
		return Untouched
	}
	if f.errors[name] != "" {
		return TouchedInvalid
	}
	return TouchedValid
}

func (f *Form) validateAll() bool {
	errs := f.schema.Check(f.values)
	f.errors = make(map[string]string)
	if errs != nil {
		for name, msg := range errs.Fields {
			f.errors[name] = msg
		}
	}
	f.valid = errs == nil
	return f.valid
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
