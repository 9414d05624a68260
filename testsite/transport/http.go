package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/vx-labs/testsite/testsite"
	"github.com/vx-labs/testsite/testsite/auth"
	"github.com/vx-labs/testsite/testsite/page"
	"github.com/vx-labs/testsite/testsite/stats"
	"go.uber.org/zap"
)

// Server serves the fixture site and simulates a page load for every page it
// delivers.
type Server struct {
	mux     *http.ServeMux
	files   http.Handler
	checker *auth.Checker
	console *Console
	logger  *zap.Logger
}

type ServerOption func(*Server)

func WithConsole(c *Console) ServerOption {
	return func(s *Server) { s.console = c }
}

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

func NewServer(root string, checker *auth.Checker, opts ...ServerOption) (*Server, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open site root")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("site root %q is not a directory", root)
	}
	s := &Server{
		mux:     http.NewServeMux(),
		files:   http.FileServer(http.Dir(root)),
		checker: checker,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if s.console != nil {
		s.mux.Handle("/console", s.console)
	}
	s.mux.HandleFunc("/", s.servePage)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func isPage(p string) bool {
	switch path.Ext(p) {
	case "", ".html", ".htm":
		return true
	default:
		return false
	}
}

// loaded reports whether a response delivers a page to the browser. A 304
// revisit still renders the cached page.
func loaded(status int) bool {
	return status < 300 || status == http.StatusNotModified
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.files.ServeHTTP(rec, r)
	if r.Method != http.MethodGet || !isPage(r.URL.Path) || !loaded(rec.status) {
		stats.ServedRequests.WithLabelValues("asset").Inc()
		return
	}
	stats.ServedRequests.WithLabelValues("page").Inc()
	stats.PageLoads.Inc()
	load := page.NewLoad(auth.Path(r.URL.Path))
	ctx := testsite.StoreLogger(r.Context(), s.logger)
	ctx = testsite.AddFields(ctx, zap.String("remote_address", r.RemoteAddr))
	testsite.L(ctx).Debug("page loaded", zap.String("path", r.URL.Path), zap.String("load_id", load.ID), zap.Int("status", rec.status))
	load.OnReady(s.checker.Initialize)
	load.Ready(ctx)
}

// Listen serves handler on port until ctx is cancelled.
func Listen(ctx context.Context, port int, handler http.Handler) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrap(err, "failed to start HTTP listener")
	}
	return Serve(ctx, ln, handler)
}

// Serve serves handler on ln until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler: handler,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			testsite.L(ctx).Debug("http listener shutdown failed", zap.Error(err))
		}
	}()
	err := srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrap(err, "http listener failed")
}
