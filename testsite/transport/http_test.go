package transport

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/testsite/testsite/auth"
	"go.uber.org/zap"
)

type recorder struct {
	mtx   sync.Mutex
	paths []string
}

func (r *recorder) Notify(ctx context.Context, notice auth.Notice) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.paths = append(r.paths, notice.Path)
	return nil
}

func (r *recorder) Paths() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]string{}, r.paths...)
}

func fixtureSite(t *testing.T) string {
	root, err := ioutil.TempDir("", "testsite")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(root) })
	files := map[string]string{
		"index.html":               "<html></html>",
		"public/home.html":         "<html></html>",
		"protected/dashboard.html": "<html></html>",
		"protected/js/settings.js": "",
		"js/auth.js":               "",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750))
		require.NoError(t, ioutil.WriteFile(p, []byte(body), 0640))
	}
	return root
}

func get(t *testing.T, srv *httptest.Server, p string) int {
	resp, err := srv.Client().Get(srv.URL + p)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestServer(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := NewServer(filepath.Join(os.TempDir(), "testsite-missing-root"), auth.NewChecker())
		require.Error(t, err)
	})
	t.Run("page loads", func(t *testing.T) {
		rec := &recorder{}
		s, err := NewServer(fixtureSite(t), auth.NewChecker(auth.WithNotifier(rec)), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		srv := httptest.NewServer(s)
		defer srv.Close()

		require.Equal(t, http.StatusOK, get(t, srv, "/"))
		require.Equal(t, http.StatusOK, get(t, srv, "/public/home.html"))
		require.Empty(t, rec.Paths())

		require.Equal(t, http.StatusOK, get(t, srv, "/protected/dashboard.html"))
		require.Equal(t, []string{"/protected/dashboard.html"}, rec.Paths())

		require.Equal(t, http.StatusOK, get(t, srv, "/protected/js/settings.js"))
		require.Equal(t, http.StatusNotFound, get(t, srv, "/protected/missing.html"))
		require.Len(t, rec.Paths(), 1)

		require.Equal(t, http.StatusOK, get(t, srv, "/protected/dashboard.html"))
		require.Len(t, rec.Paths(), 2)
	})
	t.Run("cached revisit", func(t *testing.T) {
		rec := &recorder{}
		s, err := NewServer(fixtureSite(t), auth.NewChecker(auth.WithNotifier(rec)))
		require.NoError(t, err)
		srv := httptest.NewServer(s)
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/protected/dashboard.html")
		require.NoError(t, err)
		resp.Body.Close()
		lastModified := resp.Header.Get("Last-Modified")
		require.NotEmpty(t, lastModified)

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/protected/dashboard.html", nil)
		require.NoError(t, err)
		req.Header.Set("If-Modified-Since", lastModified)
		resp, err = srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotModified, resp.StatusCode)
		require.Equal(t, []string{"/protected/dashboard.html", "/protected/dashboard.html"}, rec.Paths())
	})
	t.Run("directory listing", func(t *testing.T) {
		rec := &recorder{}
		s, err := NewServer(fixtureSite(t), auth.NewChecker(auth.WithNotifier(rec)))
		require.NoError(t, err)
		srv := httptest.NewServer(s)
		defer srv.Close()
		require.Equal(t, http.StatusOK, get(t, srv, "/protected/"))
		require.Equal(t, []string{"/protected/"}, rec.Paths())
	})
	t.Run("healthz", func(t *testing.T) {
		s, err := NewServer(fixtureSite(t), auth.NewChecker())
		require.NoError(t, err)
		srv := httptest.NewServer(s)
		defer srv.Close()
		require.Equal(t, http.StatusOK, get(t, srv, "/healthz"))
	})
}

func TestIsPage(t *testing.T) {
	require.True(t, isPage("/"))
	require.True(t, isPage("/protected/dashboard"))
	require.True(t, isPage("/index.html"))
	require.False(t, isPage("/js/auth.js"))
	require.False(t, isPage("/css/site.css"))
}

func TestConsole(t *testing.T) {
	console := NewConsole(zap.NewNop())
	s, err := NewServer(fixtureSite(t), auth.NewChecker(auth.WithNotifier(console)), WithConsole(console))
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/console", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return console.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, get(t, srv, "/protected/dashboard.html"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	notice := auth.Notice{}
	require.NoError(t, json.Unmarshal(payload, &notice))
	require.Equal(t, "/protected/dashboard.html", notice.Path)
	require.Equal(t, auth.ProtectedPageMessage, notice.Message)
	require.NotEmpty(t, notice.LoadID)

	conn.Close()
	require.Eventually(t, func() bool { return console.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestConsoleSlowClient(t *testing.T) {
	console := NewConsole(zap.NewNop())
	stalled := &consoleClient{remoteAddress: "192.0.2.1:4242", ch: make(chan []byte, 1)}
	console.add(stalled)
	require.Equal(t, 1, console.Clients())

	notice := auth.Notice{Path: "/protected/dashboard", Message: auth.ProtectedPageMessage}
	require.NoError(t, console.Notify(context.Background(), notice))
	require.Equal(t, 1, console.Clients())
	require.NoError(t, console.Notify(context.Background(), notice))
	require.Equal(t, 0, console.Clients())

	_, open := <-stalled.ch
	require.True(t, open)
	_, open = <-stalled.ch
	require.False(t, open)
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s, err := NewServer(fixtureSite(t), auth.NewChecker())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, s)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
