// Package header manages the user-defined header fields that end up in the
// <HEADER> block of a converted document.
package header

import (
	"fmt"

	"github.com/nconklindev/sheet2xml/internal/types"
)

// FieldUpdate is a partial update of one row. Nil members are left unchanged.
type FieldUpdate struct {
	TagName  *string
	TagValue *string
}

// Name returns an update that only touches the tag name.
func Name(s string) FieldUpdate { return FieldUpdate{TagName: &s} }

// Value returns an update that only touches the tag value.
func Value(s string) FieldUpdate { return FieldUpdate{TagValue: &s} }

// Editor holds an ordered list of header fields with a parallel list of
// per-row error messages. Validity and preview are recomputed after every
// change.
type Editor struct {
	fields  []types.HeaderField
	errors  []string
	valid   bool
	preview string

	// OnValidationChange is called with the overall validity after every
	// change.
	OnValidationChange func(valid bool)
}

// NewEditor returns an editor holding one empty row.
func NewEditor() *Editor {
	e := &Editor{}
	e.Add()
	return e
}

// Add appends an empty row.
func (e *Editor) Add() {
	e.fields = append(e.fields, types.HeaderField{IsValid: true})
	e.errors = append(e.errors, "")
	e.changed()
}

// Remove deletes row i and its error message.
func (e *Editor) Remove(i int) error {
	if i < 0 || i >= len(e.fields) {
		return fmt.Errorf("remove row %d: %w", i, ErrRowOutOfRange)
	}
	e.fields = append(e.fields[:i], e.fields[i+1:]...)
	e.errors = append(e.errors[:i], e.errors[i+1:]...)
	e.changed()
	return nil
}

// CanRemove reports whether the views should offer removing a row. The last
// remaining row is kept so there is always an input to type into.
func (e *Editor) CanRemove() bool {
	return len(e.fields) > 1
}

// Update merges u into row i. A new name is re-validated and the row's
// error message set or cleared accordingly.
func (e *Editor) Update(i int, u FieldUpdate) error {
	if i < 0 || i >= len(e.fields) {
		return fmt.Errorf("update row %d: %w", i, ErrRowOutOfRange)
	}

	f := e.fields[i]
	if u.TagValue != nil {
		f.TagValue = *u.TagValue
	}
	if u.TagName != nil {
		f.TagName = *u.TagName
		f.IsValid = ValidateTagName(f.TagName)
		if !f.IsValid && f.TagName != "" {
			e.errors[i] = InvalidTagNameMessage
		} else {
			e.errors[i] = ""
		}
	}
	e.fields[i] = f
	e.changed()
	return nil
}

// Set replaces all rows, validating every name as if it had been typed.
func (e *Editor) Set(fields []types.HeaderField) {
	e.fields = make([]types.HeaderField, 0, len(fields))
	e.errors = make([]string, 0, len(fields))
	for _, f := range fields {
		f.IsValid = ValidateTagName(f.TagName)
		msg := ""
		if !f.IsValid && f.TagName != "" {
			msg = InvalidTagNameMessage
		}
		e.fields = append(e.fields, f)
		e.errors = append(e.errors, msg)
	}
	e.changed()
}

func (e *Editor) changed() {
	e.valid = Valid(e.fields)
	e.preview = Preview(e.fields)
	if e.OnValidationChange != nil {
		e.OnValidationChange(e.valid)
	}
}

// Len returns the number of rows.
func (e *Editor) Len() int { return len(e.fields) }

// Field returns row i.
func (e *Editor) Field(i int) types.HeaderField { return e.fields[i] }

// Error returns the message for row i, or "".
func (e *Editor) Error(i int) string { return e.errors[i] }

// Fields returns a copy of the rows.
func (e *Editor) Fields() []types.HeaderField {
	out := make([]types.HeaderField, len(e.fields))
	copy(out, e.fields)
	return out
}

// Errors returns a copy of the per-row messages.
func (e *Editor) Errors() []string {
	out := make([]string, len(e.errors))
	copy(out, e.errors)
	return out
}

// Valid reports the overall validity as of the last change.
func (e *Editor) Valid() bool { return e.valid }

// Preview returns the header block as of the last change.
func (e *Editor) Preview() string { return e.preview }

// EscapedPreview renders the current rows with values escaped.
func (e *Editor) EscapedPreview() string { return EscapedPreview(e.fields) }

// HasReservedMarkup reports whether the verbatim preview would be malformed.
func (e *Editor) HasReservedMarkup() bool { return HasReservedMarkup(e.fields) }

// Valid reports whether every row is either blank or complete with a
// grammatical name. One bad row invalidates the whole set.
func Valid(fields []types.HeaderField) bool {
	for _, f := range fields {
		if f.Empty() {
			continue
		}
		if f.TagName == "" || f.TagValue == "" || !ValidateTagName(f.TagName) {
			return false
		}
	}
	return true
}
