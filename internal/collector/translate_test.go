package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsMostlyChinese(t *testing.T) {
	cases := map[string]bool{
		"":                         true,
		"英伟达发布新一代芯片":               true,
		"OpenAI 发布 GPT":            true,
		"Apple unveils new iPhone": false,
		"a":                        false,
	}
	for in, want := range cases {
		if got := IsMostlyChinese(in); got != want {
			t.Fatalf("IsMostlyChinese(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTranslatorFallsBackToMyMemory(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer google.Close()

	memory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en|zh", r.URL.Query().Get("langpair"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"苹果发布新手机"}}`))
	}))
	defer memory.Close()

	tr := NewTranslator(zap.NewNop())
	tr.GoogleURL = google.URL
	tr.MemoryURL = memory.URL

	assert.Equal(t, "苹果发布新手机", tr.ToChinese(context.Background(), "Apple unveils new phone"))
}

func TestTranslatorGoogleAndPassthrough(t *testing.T) {
	var calls int32
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "gtx", r.URL.Query().Get("client"))
		_, _ = w.Write([]byte(`[[["你好，","Hello, ",null],["世界","world",null]],null,"en"]`))
	}))
	defer google.Close()

	tr := NewTranslator(zap.NewNop())
	tr.GoogleURL = google.URL
	tr.MemoryURL = "http://127.0.0.1:1"

	assert.Equal(t, "你好，世界", tr.ToChinese(context.Background(), "Hello, world"))
	assert.Equal(t, "已经是中文", tr.ToChinese(context.Background(), "已经是中文"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
