package oai

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// errBadToken maps to the badResumptionToken protocol error.
var errBadToken = errors.New("bad resumption token")

// harvestCursor is the stateless resumption token payload. It carries
// the original selection so a follow-up request cannot silently change
// the window, plus the keyset position of the last delivered item.
type harvestCursor struct {
	Prefix           string `json:"p"`
	From             string `json:"f,omitempty"`
	Until            string `json:"u,omitempty"`
	LastModified     string `json:"m"`
	LastRecordID     string `json:"r"`
	Delivered        int    `json:"d"`
	CompleteListSize int    `json:"s"`
}

func encodeCursor(c harvestCursor) (string, error) {
	blob, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(blob), nil
}

func decodeCursor(token string) (harvestCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return harvestCursor{}, errBadToken
	}
	blob, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return harvestCursor{}, errBadToken
	}
	var c harvestCursor
	if err := json.Unmarshal(blob, &c); err != nil {
		return harvestCursor{}, errBadToken
	}
	if strings.TrimSpace(c.Prefix) == "" || strings.TrimSpace(c.LastRecordID) == "" {
		return harvestCursor{}, errBadToken
	}
	if _, err := time.Parse(time.RFC3339Nano, c.LastModified); err != nil {
		return harvestCursor{}, errBadToken
	}
	return c, nil
}
