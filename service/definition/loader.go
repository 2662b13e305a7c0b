package definition

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"gopkg.in/yaml.v3"

	"github.com/viant/fluxbpm/model/graph"
)

// Loader reads process definitions from any afs location.
type Loader struct {
	fs      afs.Service
	options []storage.Option
}

// NewLoader creates a loader; fs defaults to afs.New().
func NewLoader(fs afs.Service, options ...storage.Option) *Loader {
	if fs == nil {
		fs = afs.New()
	}
	return &Loader{fs: fs, options: options}
}

// Load downloads and decodes a YAML definition.
func (l *Loader) Load(ctx context.Context, URL string) (*graph.Process, error) {
	data, err := l.fs.DownloadWithURL(ctx, URL, l.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to download process %v: %w", URL, err)
	}
	process, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode process %v: %w", URL, err)
	}
	return process, nil
}

// Decode parses YAML (or JSON) bytes into an initialised process.
func Decode(data []byte) (*graph.Process, error) {
	process := &graph.Process{}
	if err := yaml.Unmarshal(data, process); err != nil {
		return nil, err
	}
	if err := process.Init(); err != nil {
		return nil, err
	}
	return process, nil
}
