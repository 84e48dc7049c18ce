package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type tokenPayload struct {
	Token string `json:"token"`
}

// Token reads name and returns the secret held in its {"token": ...} value.
func Token(ctx context.Context, g Getter, name string) (string, error) {
	if g == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: %q is not a token value: %w", name, err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", fmt.Errorf("paramstore: %q holds an empty token", name)
	}
	return tp.Token, nil
}

// TokenValue wraps a raw secret in the {"token": ...} JSON shape stored in SSM.
func TokenValue(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}
	b, _ := json.Marshal(tokenPayload{Token: strings.TrimSpace(secret)})
	return string(b)
}
