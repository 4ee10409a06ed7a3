package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/errs"
)

func chatServer(t *testing.T, status int, content string, check func(r *http.Request, body map[string]any)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if check != nil {
			check(r, body)
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream busy","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestCompleteSendsProviderHeadersAndModel(t *testing.T) {
	srv, calls := chatServer(t, http.StatusOK, "  你好  ", func(r *http.Request, body map[string]any) {
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "Daily Tech News", r.Header.Get("X-Title"))
		assert.NotEmpty(t, r.Header.Get("HTTP-Referer"))
		assert.Equal(t, OpenRouterModel, body["model"])
		assert.EqualValues(t, 200, body["max_tokens"])
	})

	p := OpenRouter("or-key")
	p.BaseURL = srv.URL
	c, err := New([]Provider{p}, zap.NewNop())
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "hi", 200)
	require.NoError(t, err)
	assert.Equal(t, "你好", out)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCompleteFallsBackToSecondProvider(t *testing.T) {
	primary, primaryCalls := chatServer(t, http.StatusBadGateway, "", nil)
	fallback, fallbackCalls := chatServer(t, http.StatusOK, "from doubao", func(r *http.Request, body map[string]any) {
		assert.Equal(t, DoubaoModel, body["model"])
		assert.Empty(t, r.Header.Get("X-Title"))
	})

	or := OpenRouter("or-key")
	or.BaseURL = primary.URL
	db := Doubao("db-key")
	db.BaseURL = fallback.URL

	c, err := New([]Provider{or, db}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"openrouter", "doubao"}, c.Providers())

	out, err := c.Complete(context.Background(), "hi", 100)
	require.NoError(t, err)
	assert.Equal(t, "from doubao", out)
	assert.Equal(t, int32(1), atomic.LoadInt32(primaryCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(fallbackCalls))
}

func TestCompleteAllProvidersFail(t *testing.T) {
	srv, _ := chatServer(t, http.StatusInternalServerError, "", nil)

	p := Doubao("db-key")
	p.BaseURL = srv.URL
	c, err := New([]Provider{p}, nil)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "hi", 100)
	require.Error(t, err)
	assert.True(t, errs.IsNetwork(err))
}

func TestNewSkipsProvidersWithoutKey(t *testing.T) {
	_, err := New([]Provider{OpenRouter(""), Doubao(" ")}, nil)
	assert.ErrorIs(t, err, errs.ErrConfigMissing)

	c, err := New([]Provider{OpenRouter(""), Doubao("k")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"doubao"}, c.Providers())
}
