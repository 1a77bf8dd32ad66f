// Package upload selects the single spreadsheet that is sent for conversion.
package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/sheet2xml/internal/types"
)

// User-facing rejection messages.
const (
	MsgUnsupportedType = "Please upload only Excel files (.xls or .xlsx)"
	MsgTooLarge        = "File size must be less than 10MB"
	MsgRejected        = "This file type is not supported"
)

var (
	ErrUnsupportedType = errors.New(MsgUnsupportedType)
	ErrTooLarge        = errors.New(MsgTooLarge)
	ErrNoCandidate     = errors.New("no file given")
)

// AllowedExtensions are offered to pickers that filter by extension.
var AllowedExtensions = []string{".xls", ".xlsx"}

var mediaTypes = map[string]string{
	".xls":  types.MediaTypeXLS,
	".xlsx": types.MediaTypeXLSX,
}

// MediaTypeFor maps a file name to its spreadsheet media type, or "".
func MediaTypeFor(name string) string {
	return mediaTypes[strings.ToLower(filepath.Ext(name))]
}

// Validate checks media type first, then size.
func Validate(f types.SelectedFile) error {
	if f.MediaType != types.MediaTypeXLS && f.MediaType != types.MediaTypeXLSX {
		return ErrUnsupportedType
	}
	if f.Size > types.MaxUploadSize {
		return ErrTooLarge
	}
	return nil
}

// FromPath describes a local file as a candidate. Content is not read.
func FromPath(path string) (types.SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.SelectedFile{}, err
	}
	if info.IsDir() {
		return types.SelectedFile{}, fmt.Errorf("%s is a directory", path)
	}
	return types.SelectedFile{
		Name:      filepath.Base(path),
		Size:      info.Size(),
		MediaType: MediaTypeFor(path),
		Path:      path,
	}, nil
}

// Selector accepts at most one file and remembers why the last attempt
// failed. The accepted file itself belongs to the owner, which is told
// through OnSelect.
type Selector struct {
	file     *types.SelectedFile
	err      string
	rejected bool
	disabled bool

	OnSelect func(*types.SelectedFile)
	OnError  func(string)
}

// Accept validates the first candidate and selects it. Any further
// candidates are ignored.
func (s *Selector) Accept(candidates []types.SelectedFile) error {
	if s.disabled {
		return nil
	}
	s.err = ""
	s.rejected = false
	if len(candidates) == 0 {
		return ErrNoCandidate
	}

	f := candidates[0]
	if err := Validate(f); err != nil {
		s.fail(err.Error())
		return err
	}

	if f.Content == nil && f.Path != "" {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			msg := fmt.Sprintf("Could not read %s", f.Name)
			s.fail(msg)
			return fmt.Errorf("read %s: %w", f.Path, err)
		}
		f.Content = data
		f.Size = int64(len(data))
		if err := Validate(f); err != nil {
			s.fail(err.Error())
			return err
		}
	}

	s.file = &f
	if s.OnSelect != nil {
		s.OnSelect(s.file)
	}
	return nil
}

// Reject records that the picker refused a file before validation.
func (s *Selector) Reject() {
	if s.disabled {
		return
	}
	s.rejected = true
}

// Remove clears the selection and any error state.
func (s *Selector) Remove() {
	if s.disabled {
		return
	}
	s.file = nil
	s.err = ""
	s.rejected = false
	if s.OnSelect != nil {
		s.OnSelect(nil)
	}
}

func (s *Selector) fail(msg string) {
	s.err = msg
	if s.OnError != nil {
		s.OnError(msg)
	}
}

// SetDisabled makes Accept, Reject and Remove no-ops while d is true.
func (s *Selector) SetDisabled(d bool) { s.disabled = d }

// Disabled reports whether the selector ignores input.
func (s *Selector) Disabled() bool { return s.disabled }

// Rejected reports whether the picker refused the last file.
func (s *Selector) Rejected() bool { return s.rejected }

// Err returns the message for the last failed selection, or "".
func (s *Selector) Err() string { return s.err }

// File returns the current selection, or nil.
func (s *Selector) File() *types.SelectedFile { return s.file }
