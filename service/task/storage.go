package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/command"
)

// Variables read and written by the storage tasks.
const (
	VarURL         = "storageUrl"
	VarContent     = "storageContent"
	VarSize        = "storageSize"
	VarContentType = "storageContentType"
)

// Storage moves content between process variables and any afs location.
type Storage struct {
	fs afs.Service
}

// Upload writes storageContent to storageUrl. Strings and byte slices are
// written as is, anything else as JSON.
func (s *Storage) Upload(ctx *command.Context, execution *entity.Execution, variables map[string]interface{}) (map[string]interface{}, error) {
	location, err := locationOf(variables)
	if err != nil {
		return nil, err
	}
	content, ok := variables[VarContent]
	if !ok {
		return nil, command.NewConfigurationError("%v: missing %v variable", Upload, VarContent)
	}
	var data []byte
	switch actual := content.(type) {
	case string:
		data = []byte(actual)
	case []byte:
		data = actual
	default:
		if data, err = json.Marshal(actual); err != nil {
			return nil, fmt.Errorf("failed to encode %v: %w", VarContent, err)
		}
	}
	if err = s.fs.Upload(ctx.Ctx(), location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to upload %v: %w", location, err)
	}
	object, err := s.fs.Object(ctx.Ctx(), location)
	if err != nil {
		return nil, fmt.Errorf("failed to get object for %v: %w", location, err)
	}
	return map[string]interface{}{
		VarSize:        object.Size(),
		VarContentType: contentType(url.Path(location)),
	}, nil
}

// Download reads storageUrl into storageContent.
func (s *Storage) Download(ctx *command.Context, execution *entity.Execution, variables map[string]interface{}) (map[string]interface{}, error) {
	location, err := locationOf(variables)
	if err != nil {
		return nil, err
	}
	exists, err := s.fs.Exists(ctx.Ctx(), location)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %v exists: %w", location, err)
	}
	if !exists {
		return nil, command.NewDomainError("%v: %v does not exist", Download, location)
	}
	data, err := s.fs.DownloadWithURL(ctx.Ctx(), location)
	if err != nil {
		return nil, fmt.Errorf("failed to download %v: %w", location, err)
	}
	return map[string]interface{}{
		VarContent:     string(data),
		VarSize:        len(data),
		VarContentType: contentType(url.Path(location)),
	}, nil
}

func locationOf(variables map[string]interface{}) (string, error) {
	location, _ := variables[VarURL].(string)
	if location == "" {
		return "", command.NewConfigurationError("missing %v variable", VarURL)
	}
	return location, nil
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".xml":
		return "application/xml"
	}
	return "application/octet-stream"
}
