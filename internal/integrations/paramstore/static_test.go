package paramstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatic_GetParameter(t *testing.T) {
	values := map[string]string{"/tour-guide/config/openai_model": "gpt-4o"}
	s := NewStatic(values)
	values["/tour-guide/config/openai_model"] = "mutated"

	v, err := s.GetParameter(context.Background(), " /tour-guide/config/openai_model ")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", v)
}

func TestStatic_MissingOrEmpty(t *testing.T) {
	s := NewStatic(map[string]string{"/empty": ""})

	_, err := s.GetParameter(context.Background(), "/missing")
	require.ErrorContains(t, err, "not set")

	_, err = s.GetParameter(context.Background(), "/empty")
	require.ErrorContains(t, err, "not set")

	_, err = s.GetParameter(context.Background(), " ")
	require.ErrorContains(t, err, "required")
}
