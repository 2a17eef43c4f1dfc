package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<a href="/about-us">about</a>`))
	})
	mux.HandleFunc("/file.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/accepted", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(r.UserAgent()))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestReaderRead(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	reader := New(Config{Timeout: time.Second}, nil)

	tests := []struct {
		name     string
		path     string
		wantBody string
		wantType string
		wantText bool
	}{
		{name: "html", path: "/", wantBody: `<a href="/about-us">about</a>`, wantType: "text/html", wantText: true},
		{name: "binary", path: "/file.pdf", wantBody: "%PDF-1.4", wantType: "application/pdf"},
		{name: "empty body", path: "/empty", wantBody: "", wantType: "text/plain", wantText: true},
		{name: "redirect followed", path: "/old", wantBody: `<a href="/about-us">about</a>`, wantType: "text/html", wantText: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := reader.Read(context.Background(), srv.URL+tt.path)
			require.NoError(t, err)
			require.NotNil(t, res)
			require.NotNil(t, res.Content)
			assert.Equal(t, srv.URL+tt.path, res.URL)
			assert.Equal(t, tt.wantBody, string(res.Content))
			assert.Equal(t, tt.wantType, res.ContentType)
			assert.Equal(t, tt.wantText, res.IsText())
		})
	}
}

func TestReaderRejectsNonOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	reader := New(Config{Timeout: time.Second}, nil)

	_, err := reader.Read(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")

	_, err = reader.Read(context.Background(), srv.URL+"/accepted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 202")
}

func TestReaderRevisitsURL(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	reader := New(Config{Timeout: time.Second}, nil)

	for range 2 {
		_, err := reader.Read(context.Background(), srv.URL+"/")
		require.NoError(t, err)
	}
}

func TestReaderSendsUserAgent(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	reader := New(Config{UserAgent: "sitecrawler-test", Timeout: time.Second}, nil)

	res, err := reader.Read(context.Background(), srv.URL+"/ua")
	require.NoError(t, err)
	assert.Equal(t, "sitecrawler-test", string(res.Content))
}

func TestReaderHonorsContext(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	reader := New(Config{Timeout: 5 * time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := reader.Read(ctx, srv.URL+"/slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReaderTransportFailure(t *testing.T) {
	t.Parallel()

	reader := New(Config{Timeout: time.Second}, nil)
	_, err := reader.Read(context.Background(), "http://127.0.0.1:1/")
	assert.Error(t, err)
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

func TestConfigureHooks(t *testing.T) {
	t.Parallel()

	var res readResult
	hooks := &stubHooks{}
	configureHooks(hooks, &res)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Headers:    &http.Header{"Content-Type": {"Text/HTML; charset=UTF-8"}},
	})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "text/html", res.ctype)
	assert.NotNil(t, res.content, "a 200 with no body still carries content")

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, res.status)
	assert.EqualError(t, res.err, "boom")
}

func TestMediaType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", mediaType(""))
	assert.Equal(t, "text/html", mediaType("text/html; charset=utf-8"))
	assert.Equal(t, "text/html", mediaType("TEXT/HTML ;;bad"))
}
