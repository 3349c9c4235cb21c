package convert

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrInvalidRequestBody is returned when the inbound body is not a JSON object.
var ErrInvalidRequestBody = errors.New("request body must be a JSON object")

var emptyObject = []byte("{}")

// NormalizeRequestBody reads an empty or whitespace-only body as an empty
// object, so a bodiless request fails model lookup rather than parsing.
func NormalizeRequestBody(body []byte) []byte {
	if len(bytes.TrimSpace(body)) == 0 {
		return emptyObject
	}
	return body
}

// RequestedModel returns the client-facing model id from an inbound body.
// Non-string values are rendered as text so they can appear in error messages.
func RequestedModel(body []byte) string {
	return gjson.GetBytes(body, "model").String()
}

// StreamRequested reports whether the inbound body asks for a streamed response.
func StreamRequested(body []byte) bool {
	return gjson.GetBytes(body, "stream").Bool()
}

// ValidateRequestBody checks that body is a single JSON object.
func ValidateRequestBody(body []byte) error {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return ErrInvalidRequestBody
	}
	return nil
}

// BuildBackendRequest rewrites an inbound chat request for the backend. Every
// field is kept byte for byte except model, which becomes backendModel, and
// stream, which is always written as an explicit boolean.
func BuildBackendRequest(body []byte, backendModel string) ([]byte, bool, error) {
	if err := ValidateRequestBody(body); err != nil {
		return nil, false, err
	}

	stream := StreamRequested(body)

	payload, err := sjson.SetBytes(body, "model", backendModel)
	if err != nil {
		return nil, false, fmt.Errorf("set model: %w", err)
	}
	payload, err = sjson.SetBytes(payload, "stream", stream)
	if err != nil {
		return nil, false, fmt.Errorf("set stream: %w", err)
	}

	return payload, stream, nil
}
