package depset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

var _ DependencySetSource = (*JSONDependencySetLoader)(nil)

// JSONDependencySetLoader loads a dependency set from a file-path.
type JSONDependencySetLoader struct {
	Path string
}

func (j *JSONDependencySetLoader) LoadDependencySet(ctx context.Context) (DependencySet, error) {
	f, err := os.Open(j.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dependency set: %w", err)
	}
	defer f.Close()
	return ParseJSONDependencySet(f)
}

func ParseJSONDependencySet(f io.Reader) (*StaticConfigDependencySet, error) {
	dec := json.NewDecoder(f)
	var out StaticConfigDependencySet
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode dependency set: %w", err)
	}
	return &out, nil
}
