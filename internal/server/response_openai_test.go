package server

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nimproxy/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var sseChunks = []string{
	"data: {\"id\":\"1\",\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n",
	"data: {\"id\":\"1\",\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n",
	": keep-alive comment\n\n",
	"data: {\"id\":\"1\",\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n",
	"data: [DONE]\n\n",
}

func sseReply(chunks []string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(core.HeaderContentType, core.ContentTypeEventStream)
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, chunk := range chunks {
			_, _ = io.WriteString(w, chunk)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func TestChatCompletions_StreamingPassthrough(t *testing.T) {
	nim := newFakeNIM(t, sseReply(sseChunks))
	s := newTestServer(t, nim.URL)

	w := serve(s, http.MethodPost, "/v1/chat/completions",
		`{"model":"deepseek-v3.1-terminus","stream":true,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, core.ContentTypeEventStream, w.Header().Get("Content-Type"))
	assert.Equal(t, core.CacheControlNoCache, w.Header().Get("Cache-Control"))
	assert.Equal(t, core.ConnectionKeepAlive, w.Header().Get("Connection"))
	assert.Equal(t, strings.Join(sseChunks, ""), w.Body.String())
	assert.True(t, w.Flushed)

	sent := nim.lastReq.Load()
	assert.Equal(t, core.ContentTypeEventStream, sent.Headers.Get("Accept"))
	assert.Equal(t, "deepseek-ai/deepseek-v3.1-terminus", gjson.GetBytes(sent.Body, "model").String())
	assert.True(t, gjson.GetBytes(sent.Body, "stream").Bool())

	stats := s.metricsService.GetRequestStats()
	require.Len(t, stats.RequestHistory, 1)
	assert.True(t, stats.RequestHistory[0].Success)
	assert.True(t, stats.RequestHistory[0].Stream)
}

func TestChatCompletions_StreamFlagTruthiness(t *testing.T) {
	cases := []struct {
		body       string
		wantStream bool
	}{
		{`{"model":"deepseek-v3.1"}`, false},
		{`{"model":"deepseek-v3.1","stream":false}`, false},
		{`{"model":"deepseek-v3.1","stream":null}`, false},
		{`{"model":"deepseek-v3.1","stream":1}`, true},
		{`{"model":"deepseek-v3.1","stream":"true"}`, true},
	}

	for _, tc := range cases {
		nim := newFakeNIM(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") == core.ContentTypeEventStream {
				sseReply([]string{"data: [DONE]\n\n"})(w, r)
				return
			}
			jsonReply(http.StatusOK, nimCompletion)(w, r)
		})
		s := newTestServer(t, nim.URL)

		w := serve(s, http.MethodPost, "/v1/chat/completions", tc.body)

		require.Equal(t, http.StatusOK, w.Code, tc.body)
		sentStream := gjson.GetBytes(nim.lastReq.Load().Body, "stream")
		assert.Equal(t, tc.wantStream, sentStream.Bool(), tc.body)
		if tc.wantStream {
			assert.Equal(t, gjson.True, sentStream.Type, tc.body)
			assert.Equal(t, "data: [DONE]\n\n", w.Body.String(), tc.body)
		} else {
			assert.Equal(t, gjson.False, sentStream.Type, tc.body)
			assert.Equal(t, "chat.completion", gjson.Get(w.Body.String(), "object").String(), tc.body)
		}
	}
}

func TestChatCompletions_StreamingUpstreamError(t *testing.T) {
	nim := newFakeNIM(t, jsonReply(http.StatusServiceUnavailable, `{"error":{"message":"Model is overloaded"}}`))
	s := newTestServer(t, nim.URL)

	w := serve(s, http.MethodPost, "/v1/chat/completions", `{"model":"deepseek-v3.1","stream":true}`)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t,
		`{"error":{"message":"Model is overloaded","type":"invalid_request_error","code":503}}`,
		w.Body.String())
}

func TestChatCompletions_StreamingClientDisconnectCancelsUpstream(t *testing.T) {
	upstreamGone := make(chan struct{})
	nim := newFakeNIM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(core.HeaderContentType, core.ContentTypeEventStream)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, sseChunks[0])
		w.(http.Flusher).Flush()

		<-r.Context().Done()
		close(upstreamGone)
	})
	s := newTestServer(t, nim.URL)

	proxy := httptest.NewServer(s.Handler())
	defer proxy.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, proxy.URL+"/v1/chat/completions",
		strings.NewReader(`{"model":"deepseek-v3.1","stream":true}`))
	require.NoError(t, err)
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(sseChunks[0], "\n"), line)

	cancel()

	select {
	case <-upstreamGone:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream request was not canceled after client disconnect")
	}
}
