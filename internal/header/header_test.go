package header

import (
	"errors"
	"testing"

	"github.com/nconklindev/sheet2xml/internal/types"
)

func TestValidateTagName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Upper with underscore", "CALLREPORT_ID", true},
		{"Leading digit", "1BAD", false},
		{"Empty string", "", false},
		{"Hyphen and digit", "a-b_2", true},
		{"Leading underscore", "_x", true},
		{"Leading hyphen", "-x", false},
		{"Space inside", "A B", false},
		{"Dot inside", "a.b", false},
		{"Colon inside", "ns:tag", false},
		{"Non-ASCII letter", "é", false},
		{"Trailing newline", "ABC\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateTagName(tt.input)
			if got != tt.expected {
				t.Errorf("ValidateTagName(%q) = %v; want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name     string
		fields   []types.HeaderField
		expected bool
	}{
		{"No rows", nil, true},
		{"Single empty row", []types.HeaderField{{}}, true},
		{"Complete row", []types.HeaderField{{TagName: "ID", TagValue: "1"}}, true},
		{"Complete and empty rows", []types.HeaderField{{TagName: "ID", TagValue: "1"}, {}}, true},
		{"Name without value", []types.HeaderField{{TagName: "ID", TagValue: "1"}, {TagName: "DATE"}}, false},
		{"Value without name", []types.HeaderField{{TagValue: "x"}}, false},
		{"Bad name", []types.HeaderField{{TagName: "1ID", TagValue: "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Valid(tt.fields)
			if got != tt.expected {
				t.Errorf("Valid(%v) = %v; want %v", tt.fields, got, tt.expected)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name     string
		fields   []types.HeaderField
		expected string
	}{
		{
			name:     "Single field",
			fields:   []types.HeaderField{{TagName: "CALLREPORT_ID", TagValue: "DTR001", IsValid: true}},
			expected: "<HEADER>\n  <CALLREPORT_ID>DTR001</CALLREPORT_ID>\n</HEADER>",
		},
		{
			name: "Two fields keep order",
			fields: []types.HeaderField{
				{TagName: "B", TagValue: "2", IsValid: true},
				{TagName: "A", TagValue: "1", IsValid: true},
			},
			expected: "<HEADER>\n  <B>2</B>\n  <A>1</A>\n</HEADER>",
		},
		{
			name:     "All empty",
			fields:   []types.HeaderField{{IsValid: true}, {IsValid: true}},
			expected: "",
		},
		{
			name: "Skips incomplete and invalid",
			fields: []types.HeaderField{
				{TagName: "A", IsValid: true},
				{TagName: "1X", TagValue: "v", IsValid: false},
				{TagName: "OK", TagValue: "v", IsValid: true},
			},
			expected: "<HEADER>\n  <OK>v</OK>\n</HEADER>",
		},
		{
			// Reserved characters pass through unescaped.
			name:     "Verbatim value",
			fields:   []types.HeaderField{{TagName: "A", TagValue: "x<y&z", IsValid: true}},
			expected: "<HEADER>\n  <A>x<y&z</A>\n</HEADER>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preview(tt.fields)
			if got != tt.expected {
				t.Errorf("Preview() = %q; want %q", got, tt.expected)
			}
			if again := Preview(tt.fields); again != got {
				t.Errorf("Preview() not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestEscapedPreview(t *testing.T) {
	fields := []types.HeaderField{
		{TagName: "A", TagValue: "x<y&z>", IsValid: true},
		{TagName: "B", TagValue: "plain", IsValid: true},
	}

	want := "<HEADER>\n  <A>x&lt;y&amp;z&gt;</A>\n  <B>plain</B>\n</HEADER>"
	if got := EscapedPreview(fields); got != want {
		t.Errorf("EscapedPreview() = %q; want %q", got, want)
	}
	if !HasReservedMarkup(fields) {
		t.Error("HasReservedMarkup() = false; want true")
	}
	if HasReservedMarkup(fields[1:]) {
		t.Error("HasReservedMarkup() = true for plain value; want false")
	}
}

func TestEditorUpdate(t *testing.T) {
	e := NewEditor()
	var reported []bool
	e.OnValidationChange = func(v bool) { reported = append(reported, v) }

	if err := e.Update(0, Name("1BAD")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if e.Error(0) != InvalidTagNameMessage {
		t.Errorf("Error(0) = %q; want the tag name message", e.Error(0))
	}
	if e.Field(0).IsValid {
		t.Error("IsValid = true for 1BAD")
	}
	if e.Valid() {
		t.Error("Valid() = true with an invalid row")
	}

	if err := e.Update(0, Name("CALLREPORT_ID")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if e.Error(0) != "" {
		t.Errorf("Error(0) = %q; want cleared", e.Error(0))
	}
	if e.Valid() {
		t.Error("Valid() = true with a name but no value")
	}

	if err := e.Update(0, Value("DTR001")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !e.Valid() {
		t.Error("Valid() = false for a complete row")
	}
	want := "<HEADER>\n  <CALLREPORT_ID>DTR001</CALLREPORT_ID>\n</HEADER>"
	if e.Preview() != want {
		t.Errorf("Preview() = %q; want %q", e.Preview(), want)
	}

	if len(reported) != 3 || reported[2] != true {
		t.Errorf("validation callbacks = %v; want 3 ending in true", reported)
	}
}

func TestEditorClearingNameClearsError(t *testing.T) {
	e := NewEditor()
	_ = e.Update(0, Name("9"))
	_ = e.Update(0, Name(""))

	if e.Error(0) != "" {
		t.Errorf("Error(0) = %q; want empty for blank name", e.Error(0))
	}
	// Blank name fails the grammar even though no message is shown.
	if e.Field(0).IsValid {
		t.Error("IsValid = true for blank name")
	}
	if !e.Valid() {
		t.Error("Valid() = false for a blank row")
	}
}

func TestEditorAddRemove(t *testing.T) {
	e := NewEditor()
	if e.CanRemove() {
		t.Error("CanRemove() = true with a single row")
	}

	e.Add()
	e.Add()
	_ = e.Update(0, Name("1A"))
	_ = e.Update(2, Name("C"))
	_ = e.Update(2, Value("3"))

	if err := e.Remove(0); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if e.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", e.Len())
	}
	if len(e.Errors()) != 2 {
		t.Errorf("len(Errors()) = %d; want 2", len(e.Errors()))
	}
	if e.Error(0) != "" {
		t.Errorf("error message did not shift with its row: %q", e.Error(0))
	}
	if e.Field(1).TagName != "C" {
		t.Errorf("Field(1).TagName = %q; want C", e.Field(1).TagName)
	}
	if !e.Valid() {
		t.Error("Valid() = false after removing the bad row")
	}

	_ = e.Remove(0)
	_ = e.Remove(0)
	if e.Len() != 0 {
		t.Errorf("Len() = %d; want 0", e.Len())
	}
	if e.Preview() != "" {
		t.Errorf("Preview() = %q; want empty", e.Preview())
	}

	if err := e.Remove(0); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("Remove on empty editor = %v; want ErrRowOutOfRange", err)
	}
	if err := e.Update(3, Value("x")); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("Update out of range = %v; want ErrRowOutOfRange", err)
	}
}

func TestEditorSet(t *testing.T) {
	e := NewEditor()
	e.Set([]types.HeaderField{
		{TagName: "A", TagValue: "1"},
		{TagName: "2B", TagValue: "2"},
		{},
	})

	if e.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", e.Len())
	}
	if e.Error(1) != InvalidTagNameMessage {
		t.Errorf("Error(1) = %q; want tag name message", e.Error(1))
	}
	if e.Valid() {
		t.Error("Valid() = true with a bad name")
	}
	if e.Preview() != "<HEADER>\n  <A>1</A>\n</HEADER>" {
		t.Errorf("Preview() = %q", e.Preview())
	}
}
