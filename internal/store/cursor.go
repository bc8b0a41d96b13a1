package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type cursor struct {
	After string `json:"after"`
}

func encodeCursor(afterID string) string {
	if afterID == "" {
		return ""
	}
	data, _ := json.Marshal(cursor{After: afterID})
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	return c.After, nil
}
