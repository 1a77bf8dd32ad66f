package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/sheet2xml/internal/api"
)

// Fetcher retrieves a download link.
type Fetcher interface {
	FetchURL(ctx context.Context, rawURL string) (*api.Download, error)
}

// SaveNavigator follows a download link by fetching the document and
// writing it to disk.
type SaveNavigator struct {
	fetcher Fetcher
	// Dir returns the directory to save into; it is consulted per download
	// so it can follow the current input file.
	Dir func() string

	// OnSaved is told where each document landed.
	OnSaved func(path string)
}

func NewSaveNavigator(f Fetcher, dir func() string) *SaveNavigator {
	return &SaveNavigator{fetcher: f, Dir: dir}
}

func (n *SaveNavigator) Navigate(ctx context.Context, downloadURL string) error {
	d, err := n.fetcher.FetchURL(ctx, downloadURL)
	if err != nil {
		return err
	}

	dir := "."
	if n.Dir != nil {
		if d := n.Dir(); d != "" {
			dir = d
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	path := filepath.Join(dir, safeName(d.Name))
	if err := os.WriteFile(path, d.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if n.OnSaved != nil {
		n.OnSaved(path)
	}
	return nil
}

// safeName keeps a server-supplied name inside the target directory.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "converted.xml"
	}
	return name
}
