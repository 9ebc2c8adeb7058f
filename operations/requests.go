package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

// RequestDTO is the JSON representation of [Request]. Relative paths are
// resolved against the directory of the batch file.
type RequestDTO struct {
	Op       string  `json:"op"`
	Source   *string `json:"source,omitempty"`
	Dest     *string `json:"dest,omitempty"`
	Name     *string `json:"name,omitempty"`
	Template *string `json:"template,omitempty"`
	Folder   *bool   `json:"folder,omitempty"` // Create a folder, or hint a missing source's type (Default false)
}

// GetOp extracts the operation from JSON without full unmarshaling.
func GetOp(data []byte) (Op, error) {
	var meta struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return 0, err
	}
	return ParseOp(meta.Op)
}

// UnmarshalRequest decodes one request, resolving relative paths against base.
func UnmarshalRequest(data []byte, base string) (*Request, error) {
	op, err := GetOp(data)
	if err != nil {
		return nil, err
	}
	var dto RequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}

	req := &Request{
		Op:       op,
		Source:   resolvePath(base, valueOrDefault(dto.Source, "")),
		Dest:     resolvePath(base, valueOrDefault(dto.Dest, "")),
		Name:     valueOrDefault(dto.Name, ""),
		Template: resolvePath(base, valueOrDefault(dto.Template, "")),
		Folder:   valueOrDefault(dto.Folder, false),
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// UnmarshalRequests decodes a JSON array of requests. Every invalid entry
// is reported; nothing is returned unless all of them decode.
func UnmarshalRequests(data []byte, base string) ([]Request, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal requests: %w", err)
	}
	batch := make([]Request, 0, len(raw))
	var errs []error
	for i, r := range raw {
		req, err := UnmarshalRequest(r, base)
		if err != nil {
			errs = append(errs, fmt.Errorf("request %d: %w", i, err))
			continue
		}
		batch = append(batch, *req)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return batch, nil
}

// checkRequest verifies the fields each operation needs.
func checkRequest(req *Request) error {
	needSource := req.Op != OpCreate
	needDest := req.Op == OpCopy || req.Op == OpMove || req.Op == OpCreate
	needName := req.Op == OpRename || req.Op == OpCreate
	switch {
	case needSource && req.Source == "":
		return fmt.Errorf("%s needs a source", req.Op)
	case needDest && req.Dest == "":
		return fmt.Errorf("%s needs a dest", req.Op)
	case needName && req.Name == "":
		return fmt.Errorf("%s needs a name", req.Op)
	}
	return nil
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

func valueOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr != nil {
		return *ptr
	}
	return defaultVal
}
