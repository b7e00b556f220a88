// ABOUTME: MCP tool for attaching a local file to a record
// ABOUTME: Streams the file through the store so upload progress is tracked
package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type UploadHandlers[E models.Entity, D any] struct {
	store *store.Store[E, D]
}

func NewUploadHandlers[E models.Entity, D any](s *store.Store[E, D]) *UploadHandlers[E, D] {
	return &UploadHandlers[E, D]{store: s}
}

type UploadInput struct {
	ID   string `json:"id" jsonschema:"Record ID (required)"`
	Path string `json:"path" jsonschema:"Path of the local file to attach (required)"`
	Name string `json:"name,omitempty" jsonschema:"Attachment name (defaults to the file name)"`
}

type UploadOutput struct {
	Attachment map[string]any `json:"attachment"`
}

func (h *UploadHandlers[E, D]) Upload(ctx context.Context, _ *mcp.CallToolRequest, input UploadInput) (*mcp.CallToolResult, UploadOutput, error) {
	if input.ID == "" {
		return nil, UploadOutput{}, fmt.Errorf("id is required")
	}
	if input.Path == "" {
		return nil, UploadOutput{}, fmt.Errorf("path is required")
	}

	f, err := os.Open(input.Path)
	if err != nil {
		return nil, UploadOutput{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, UploadOutput{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, UploadOutput{}, fmt.Errorf("%s is a directory", input.Path)
	}

	name := input.Name
	if name == "" {
		name = filepath.Base(input.Path)
	}

	attachment, err := h.store.Upload(ctx, input.ID, models.File{Name: name, Size: info.Size(), Data: f})
	if err != nil {
		return nil, UploadOutput{}, err
	}
	h.store.ClearUploadProgress(name)

	m, err := toMap(attachment)
	if err != nil {
		return nil, UploadOutput{}, err
	}
	return nil, UploadOutput{Attachment: m}, nil
}
