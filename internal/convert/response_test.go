package convert

import (
	"errors"
	"testing"
	"time"

	"nimproxy/internal/core"
	"nimproxy/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1735689600123)

func TestReshapeResponse_DefaultsUsageAndProjectsChoices(t *testing.T) {
	backend := []byte(`{"id":"nim-1","object":"chat.completion","model":"deepseek-ai/deepseek-v3.1","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop","logprobs":null,"stop_reason":"eos"}]}`)

	resp, err := ReshapeResponse(backend, "deepseek-v3.1", fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1735689600123", resp.ID)
	assert.Equal(t, core.ChatCompletionObjectType, resp.Object)
	assert.Equal(t, int64(1735689600), resp.Created)
	assert.Equal(t, "deepseek-v3.1", resp.Model)
	assert.JSONEq(t, `{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}`, string(resp.Usage))

	out, err := util.MarshalJSON(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":"chatcmpl-1735689600123",
		"object":"chat.completion",
		"created":1735689600,
		"model":"deepseek-v3.1",
		"choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}
	}`, string(out))
}

func TestReshapeResponse_KeepsUpstreamUsageAndMessageFields(t *testing.T) {
	backend := []byte(`{"model":"z-ai/glm4.7","choices":[{"index":1,"message":{"role":"assistant","content":"ok","reasoning_content":"because"},"finish_reason":"length"}],"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}`)

	resp, err := ReshapeResponse(backend, "GLM 4.7", fixedNow)
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	assert.JSONEq(t, `1`, string(resp.Choices[0].Index))
	assert.JSONEq(t, `{"role":"assistant","content":"ok","reasoning_content":"because"}`, string(resp.Choices[0].Message))
	assert.JSONEq(t, `"length"`, string(resp.Choices[0].FinishReason))
	assert.JSONEq(t, `{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}`, string(resp.Usage))
	assert.Equal(t, "GLM 4.7", resp.Model)
}

func TestReshapeResponse_NullUsageFallsBackToZero(t *testing.T) {
	resp, err := ReshapeResponse([]byte(`{"choices":[],"usage":null}`), "m", fixedNow)
	require.NoError(t, err)

	assert.Empty(t, resp.Choices)
	assert.JSONEq(t, `{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}`, string(resp.Usage))
}

func TestReshapeResponse_MissingChoiceFieldsBecomeNull(t *testing.T) {
	resp, err := ReshapeResponse([]byte(`{"choices":[{"index":2}]}`), "m", fixedNow)
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	assert.JSONEq(t, `2`, string(resp.Choices[0].Index))
	assert.Equal(t, "null", string(resp.Choices[0].Message))
	assert.Equal(t, "null", string(resp.Choices[0].FinishReason))
}

func TestReshapeResponse_MissingIndexIsOmitted(t *testing.T) {
	resp, err := ReshapeResponse([]byte(`{"choices":[{"message":{"role":"assistant","content":"x"},"finish_reason":"stop"}]}`), "m", fixedNow)
	require.NoError(t, err)

	out, err := util.MarshalJSON(resp.Choices)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"message":{"role":"assistant","content":"x"},"finish_reason":"stop"}]`, string(out))
}

func TestReshapeResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>bad gateway</html>`},
		{"missing choices", `{"object":"chat.completion"}`},
		{"choices not array", `{"choices":{"index":0}}`},
		{"empty body", ``},
		{"null choice", `{"choices":[null]}`},
		{"string choice", `{"choices":[{"index":0,"message":{}},"oops"]}`},
		{"number choice", `{"choices":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReshapeResponse([]byte(tt.body), "m", fixedNow)
			assert.True(t, errors.Is(err, ErrMalformedResponse), "got %v", err)
		})
	}
}

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai envelope", `{"error":{"message":"overloaded","type":"server_error"}}`, "overloaded"},
		{"string error", `{"error":"bad key"}`, "bad key"},
		{"top-level message", `{"status":422,"message":"unprocessable"}`, "unprocessable"},
		{"fastapi detail", `{"detail":"Function not found"}`, "Function not found"},
		{"detail list ignored", `{"detail":[{"msg":"x"}]}`, ""},
		{"not json", `upstream timed out`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractErrorMessage([]byte(tt.body)))
		})
	}
}
