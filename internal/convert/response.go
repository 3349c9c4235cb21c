package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nimproxy/internal/core"
	"nimproxy/internal/util"

	"github.com/tidwall/gjson"
)

// ErrMalformedResponse is returned when a backend completion cannot be reshaped.
var ErrMalformedResponse = errors.New("malformed upstream response")

var jsonNull = json.RawMessage("null")

// ReshapeResponse converts a buffered backend completion into the client
// schema. The model field always carries clientModel, never the backend id.
func ReshapeResponse(body []byte, clientModel string, now time.Time) (core.ChatCompletionResponse, error) {
	if !gjson.ValidBytes(body) {
		return core.ChatCompletionResponse{}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}

	root := gjson.ParseBytes(body)
	choices := root.Get("choices")
	if !choices.IsArray() {
		return core.ChatCompletionResponse{}, fmt.Errorf("%w: choices is missing or not an array", ErrMalformedResponse)
	}

	projected := make([]core.ChatCompletionChoice, 0, len(choices.Array()))
	var choiceErr error
	choices.ForEach(func(_, choice gjson.Result) bool {
		if !choice.IsObject() {
			choiceErr = fmt.Errorf("%w: choice %d is not an object", ErrMalformedResponse, len(projected))
			return false
		}
		var index json.RawMessage
		if r := choice.Get("index"); r.Exists() {
			index = json.RawMessage(r.Raw)
		}
		projected = append(projected, core.ChatCompletionChoice{
			Index:        index,
			Message:      rawOrNull(choice.Get("message")),
			FinishReason: rawOrNull(choice.Get("finish_reason")),
		})
		return true
	})
	if choiceErr != nil {
		return core.ChatCompletionResponse{}, choiceErr
	}

	usage, err := usageOrZero(root.Get("usage"))
	if err != nil {
		return core.ChatCompletionResponse{}, err
	}

	return core.ChatCompletionResponse{
		ID:      util.GenerateTimestampID(core.ResponseIDPrefix, now),
		Object:  core.ChatCompletionObjectType,
		Created: now.Unix(),
		Model:   clientModel,
		Choices: projected,
		Usage:   usage,
	}, nil
}

func rawOrNull(r gjson.Result) json.RawMessage {
	if !r.Exists() {
		return jsonNull
	}
	return json.RawMessage(r.Raw)
}

func usageOrZero(r gjson.Result) (json.RawMessage, error) {
	if r.Exists() && r.Type != gjson.Null {
		return json.RawMessage(r.Raw), nil
	}
	zero, err := util.MarshalJSON(core.OpenAIUsage{})
	if err != nil {
		return nil, fmt.Errorf("marshal default usage: %w", err)
	}
	return zero, nil
}

// ExtractErrorMessage pulls a human readable message out of a backend error
// payload. It returns "" when none is present.
func ExtractErrorMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}

	root := gjson.ParseBytes(body)
	for _, path := range []string{"error.message", "error", "message", "detail"} {
		if r := root.Get(path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
