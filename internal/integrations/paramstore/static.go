package paramstore

import (
	"context"
	"fmt"
	"strings"
)

// Static serves parameters from an in-process map. It backs local runs where
// secrets come from the environment instead of SSM.
type Static struct {
	values map[string]string
}

// NewStatic copies values so later mutation by the caller has no effect.
func NewStatic(values map[string]string) *Static {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[strings.TrimSpace(k)] = v
	}
	return &Static{values: copied}
}

func (s *Static) GetParameter(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("paramstore: name is required")
	}
	v, ok := s.values[name]
	if !ok || v == "" {
		return "", fmt.Errorf("paramstore: parameter %q not set", name)
	}
	return v, nil
}
