package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildBackendRequest_RewritesModelAndKeepsFields(t *testing.T) {
	body := []byte(`{"model":"deepseek-v3.1","messages":[{"role":"user","content":"hi"}],"temperature":0.2,"top_p":0.9,"extra_body":{"chat_template_kwargs":{"thinking":true}}}`)

	payload, stream, err := BuildBackendRequest(body, "deepseek-ai/deepseek-v3.1")
	require.NoError(t, err)

	assert.False(t, stream)
	assert.Equal(t, "deepseek-ai/deepseek-v3.1", gjson.GetBytes(payload, "model").String())
	assert.Equal(t, gjson.False, gjson.GetBytes(payload, "stream").Type)
	assert.Equal(t, 0.2, gjson.GetBytes(payload, "temperature").Float())
	assert.Equal(t, 0.9, gjson.GetBytes(payload, "top_p").Float())
	assert.JSONEq(t, `[{"role":"user","content":"hi"}]`, gjson.GetBytes(payload, "messages").Raw)
	assert.True(t, gjson.GetBytes(payload, "extra_body.chat_template_kwargs.thinking").Bool())
}

func TestBuildBackendRequest_StreamFlag(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		stream bool
	}{
		{"absent defaults to false", `{"model":"m"}`, false},
		{"explicit false", `{"model":"m","stream":false}`, false},
		{"explicit true", `{"model":"m","stream":true}`, true},
		{"null", `{"model":"m","stream":null}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, stream, err := BuildBackendRequest([]byte(tt.body), "vendor/m")
			require.NoError(t, err)
			assert.Equal(t, tt.stream, stream)

			written := gjson.GetBytes(payload, "stream")
			require.True(t, written.IsBool(), "stream must be an explicit boolean")
			assert.Equal(t, tt.stream, written.Bool())
		})
	}
}

func TestBuildBackendRequest_InvalidBody(t *testing.T) {
	for _, body := range []string{``, `not json`, `[1,2]`, `"model"`, `{"model":`} {
		_, _, err := BuildBackendRequest([]byte(body), "vendor/m")
		assert.ErrorIs(t, err, ErrInvalidRequestBody, "body %q", body)
	}
}

func TestNormalizeRequestBody(t *testing.T) {
	for _, body := range []string{``, `   `, "\n\t"} {
		assert.Equal(t, `{}`, string(NormalizeRequestBody([]byte(body))), "body %q", body)
	}
	assert.Equal(t, `{"model":"m"}`, string(NormalizeRequestBody([]byte(`{"model":"m"}`))))
	assert.Equal(t, `not json`, string(NormalizeRequestBody([]byte(`not json`))))
}

func TestRequestedModel(t *testing.T) {
	assert.Equal(t, "GLM 4.7", RequestedModel([]byte(`{"model":"GLM 4.7"}`)))
	assert.Equal(t, "", RequestedModel([]byte(`{"messages":[]}`)))
	assert.Equal(t, "42", RequestedModel([]byte(`{"model":42}`)))
}
