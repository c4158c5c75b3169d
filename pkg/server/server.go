package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"

	"github.com/energiwatch/energiwatch/pkg/dashboard"
	"github.com/energiwatch/energiwatch/pkg/log"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is the JSON API in front of the dashboard. It also serves the
// browser UI, either from a directory or through a dev server.
type Server struct {
	dashboard *dashboard.Dashboard
	proxy     http.Handler

	listenAddr       string
	devProxy         string
	webDir           string
	webCacheDuration time.Duration
	serverName       string
	httpServer       *http.Server
}

// Configured registers the server flags. proxy serves /api/gemini. The
// dashboard needs the parsed storage flags, so it is attached afterwards with
// SetDashboard.
func Configured(proxy http.Handler) *Server {
	srv := New(nil, proxy)
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	devProxy := lflag.String("dev-proxy", "", "Address of the dev server (e.g. http://localhost:5173)")
	webDir := lflag.String("web-dir", "", "Directory holding the built web UI")
	webCacheDuration := lflag.Duration("web-cache-duration", 0, "Duration to cache web files (e.g. 1h, 5m). 0 means no cache.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.devProxy = *devProxy
		srv.webDir = *webDir
		srv.webCacheDuration = *webCacheDuration
		if srv.devProxy != "" {
			if _, err := url.Parse(srv.devProxy); err != nil {
				panic(fmt.Sprintf("invalid dev-proxy url (%s): %v", srv.devProxy, err))
			}
		}
	})

	return srv
}

// New returns a Server without reading flags.
func New(d *dashboard.Dashboard, proxy http.Handler) *Server {
	return &Server{
		dashboard:  d,
		proxy:      proxy,
		listenAddr: ":8080",
		serverName: "energiwatch",
	}
}

// SetDashboard attaches d. It must be called before Run.
func (s *Server) SetDashboard(d *dashboard.Dashboard) {
	s.dashboard = d
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/state", s.handleGetState)
	apiMux.HandleFunc("DELETE /api/state", s.handleResetState)
	apiMux.HandleFunc("POST /api/appliances", s.handleSetAppliances)
	apiMux.HandleFunc("POST /api/appliances/essential", s.handleToggleEssential)
	apiMux.HandleFunc("POST /api/appliances/continuous", s.handleToggleContinuous)
	apiMux.HandleFunc("POST /api/budget", s.handleSetBudget)
	apiMux.HandleFunc("POST /api/usageMode", s.handleSetUsageMode)
	apiMux.HandleFunc("POST /api/tariff", s.handleSetTariff)
	apiMux.HandleFunc("GET /api/chart", s.handleGetChart)
	apiMux.HandleFunc("GET /api/bill", s.handleGetBill)
	apiMux.HandleFunc("POST /api/demo", s.handleGenerateDemo)
	apiMux.HandleFunc("POST /api/recommendations", s.handleRecommend)
	if s.proxy != nil {
		// the proxy answers 405 itself so clients get its error shape
		apiMux.Handle("/api/gemini", s.proxy)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", s.requestMiddleware(apiMux))

	// serve the web frontend, either from a directory or from the dev server
	switch {
	case s.devProxy != "":
		u, err := url.Parse(s.devProxy)
		if err != nil {
			panic(fmt.Errorf("invalid dev-proxy url (%s): %w", s.devProxy, err))
		}
		mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
	case s.webDir != "":
		dir := os.DirFS(s.webDir)
		mux.Handle("/", s.webHandler(dir, http.FileServer(http.FS(dir))))
	default:
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSONError(w, "not found", http.StatusNotFound)
		})
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	if s.dashboard == nil {
		return errors.New("server has no dashboard")
	}
	s.httpServer = &http.Server{
		Addr:        s.listenAddr,
		Handler:     s.setupHandler(),
		ReadTimeout: 15 * time.Second,
		// advisor calls can take up to the advisor timeout
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) webHandler(dir fs.FS, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Default to serving index.html for unknown paths (SPA)
		if r.URL.Path != "/" {
			f, err := dir.Open(strings.TrimPrefix(r.URL.Path, "/"))
			if err == nil {
				f.Close()
			} else if errors.Is(err, fs.ErrNotExist) {
				if strings.HasPrefix(r.URL.Path, "/.well-known/") {
					// we don't write JSON here because we don't know what file type is expected
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				r.URL.Path = "/"
			} else if errors.Is(err, fs.ErrInvalid) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			} else {
				log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to open file", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		if s.webCacheDuration > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.webCacheDuration.Seconds())))
		}

		h.ServeHTTP(w, r)
	}
}
