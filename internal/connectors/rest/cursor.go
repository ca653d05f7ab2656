package rest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CursorVersion is the current cursor schema version.
const CursorVersion = 1

// EncodeCursor serialises v with a version field into a base64 JSON string.
// v must marshal to a JSON object.
func EncodeCursor(v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	fields["v"] = json.RawMessage(fmt.Sprint(CursorVersion))

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor deserialises a cursor produced by EncodeCursor into v.
// Unknown versions and malformed input return ErrInvalidCursor.
func DecodeCursor(s string, v any) error {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return ErrInvalidCursor
	}

	var header struct {
		Version int `json:"v"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return ErrInvalidCursor
	}
	if header.Version != CursorVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidCursor, header.Version)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return ErrInvalidCursor
	}
	return nil
}
