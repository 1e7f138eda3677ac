package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"estate-sync/models"
)

// envelope covers every object shape the workflow has been seen to return.
type envelope struct {
	Success json.RawMessage `json:"success"`
	Data    json.RawMessage `json:"data"`
	JSON    json.RawMessage `json:"json"`
}

// DecodeBatch extracts the listing array from a webhook response. Accepted
// shapes, in order:
//
//	[{"json": {...}}, ...] or [{...}, ...]
//	{"success": ..., "data": [...]} or {"data": [...]}
//	{"json": {"data": [...]}}
//
// Any other valid JSON, including an object whose data is not an array,
// decodes to an empty batch.
func DecodeBatch(r io.Reader) ([]*models.RawListing, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}

	if b[0] == '[' {
		return decodeItems(b)
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	if isArray(env.Data) {
		return decodeArray(env.Data)
	}
	if present(env.JSON) {
		var inner envelope
		if err := json.Unmarshal(env.JSON, &inner); err == nil && isArray(inner.Data) {
			return decodeArray(inner.Data)
		}
	}
	return nil, nil
}

// decodeItems unwraps the per-item {"json": {...}} wrapper when present.
func decodeItems(b []byte) ([]*models.RawListing, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	out := make([]*models.RawListing, 0, len(items))
	for i, item := range items {
		var wrapper struct {
			JSON json.RawMessage `json:"json"`
		}
		payload := item
		if err := json.Unmarshal(item, &wrapper); err == nil && present(wrapper.JSON) {
			payload = wrapper.JSON
		}

		var raw models.RawListing
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, &raw)
	}
	return out, nil
}

func decodeArray(b json.RawMessage) ([]*models.RawListing, error) {
	var out []*models.RawListing
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return out, nil
}

func present(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && !bytes.Equal(b, []byte("null"))
}

func isArray(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

// FileSource replays a saved webhook response from disk.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(_ context.Context) ([]*models.RawListing, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeBatch(file)
}
