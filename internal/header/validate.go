package header

import "regexp"

// InvalidTagNameMessage is shown next to a row whose name breaks the grammar.
const InvalidTagNameMessage = "Tag name must start with a letter or underscore and contain only letters, numbers, underscores, or hyphens"

var tagNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateTagName reports whether name is usable as an element name.
func ValidateTagName(name string) bool {
	return tagNamePattern.MatchString(name)
}
