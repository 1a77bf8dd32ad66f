package header

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/nconklindev/sheet2xml/internal/types"
)

const (
	openHeader  = "<HEADER>"
	closeHeader = "</HEADER>"
)

// Preview renders the <HEADER> block for the rows that are complete and
// valid. Names and values are inserted verbatim; see EscapedPreview.
func Preview(fields []types.HeaderField) string {
	return render(fields, func(s string) string { return s })
}

// EscapedPreview is Preview with values escaped as XML character data.
// Names are not escaped since a valid name cannot hold reserved characters.
func EscapedPreview(fields []types.HeaderField) string {
	return render(fields, escapeText)
}

func render(fields []types.HeaderField, value func(string) string) string {
	var lines []string
	for _, f := range fields {
		if f.TagName == "" || f.TagValue == "" || !f.IsValid {
			continue
		}
		lines = append(lines, fmt.Sprintf("  <%s>%s</%s>", f.TagName, value(f.TagValue), f.TagName))
	}

	if len(lines) == 0 {
		return ""
	}
	return openHeader + "\n" + strings.Join(lines, "\n") + "\n" + closeHeader
}

func escapeText(s string) string {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer never fail.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// HasReservedMarkup reports whether any previewed row carries characters
// that would produce malformed markup when inserted verbatim.
func HasReservedMarkup(fields []types.HeaderField) bool {
	for _, f := range fields {
		if f.TagName == "" || f.TagValue == "" || !f.IsValid {
			continue
		}
		if strings.ContainsAny(f.TagValue, "<>&") {
			return true
		}
	}
	return false
}
