package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Bind decodes a raw JSON body into v in strict mode: unknown fields and
// trailing data are rejected.
func Bind(raw []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields() // Strict mode prevents typos and unexpected fields

	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
		}
		return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
	}

	// Verify no trailing data exists after valid JSON
	var extra json.RawMessage
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
	}
	return nil
}
