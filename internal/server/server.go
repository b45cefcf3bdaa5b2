package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that serves a fixed set of route patterns.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                                               // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler, middleware ...Middleware) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                                                    // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request)                           // ServeHTTP implements http.Handler for the entire router
}

// Options are the dependencies of a [Server]. Google and Prober are optional.
type Options struct {
	Config    *shared.Config
	Store     *repositories.Store
	Accounts  *tasks.Accounts
	Moderator *tasks.Moderator
	Publisher *tasks.Publisher
	Prober    *tasks.StationProber
	Storage   services.MediaStorage
	Google    *services.GoogleProvider
	Logger    *log.Logger
}

// Server is the ZyloFM JSON API.
type Server struct {
	cfg       *shared.Config
	store     *repositories.Store
	accounts  *tasks.Accounts
	moderator *tasks.Moderator
	publisher *tasks.Publisher
	prober    *tasks.StationProber
	storage   services.MediaStorage
	google    *services.GoogleProvider
	logger    *log.Logger
	router    *BasicRouter
	limiter   *ClientLimiter
}

// New creates a [Server] and registers every route.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}

	s := &Server{
		cfg:       opts.Config,
		store:     opts.Store,
		accounts:  opts.Accounts,
		moderator: opts.Moderator,
		publisher: opts.Publisher,
		prober:    opts.Prober,
		storage:   opts.Storage,
		google:    opts.Google,
		logger:    opts.Logger,
		router:    NewBasicRouter(),
		limiter:   NewClientLimiter(opts.Config.Limits.RequestsPerSecond, opts.Config.Limits.Burst),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(
		RequestID(),
		Logging(s.logger),
		Recover(s.logger),
		CORS(s.cfg.Server.CORSOrigins),
		Authenticate(s.accounts),
	)
	if s.cfg.Limits.RequestsPerSecond > 0 {
		r.Use(RateLimit(s.limiter))
	}

	authed := RequireAuth()
	dj := RequireRole(models.RoleDJ)
	admin := RequireRole(models.RoleAdmin)

	r.HandleFunc("GET", "/api/health", s.health)

	r.HandleFunc("POST", "/api/auth/register", s.register)
	r.HandleFunc("POST", "/api/auth/login", s.login)
	r.HandleFunc("GET", "/api/auth/me", s.me, authed)
	r.HandleFunc("PUT", "/api/auth/me", s.updateMe, authed)
	r.Handler(NewOAuthHandler(s.google, s.accounts, oauthRedirect(s.cfg), s.logger))

	r.HandleFunc("GET", "/api/genres", s.listGenres)
	r.HandleFunc("GET", "/api/genres/{slug}", s.getGenre)
	r.HandleFunc("GET", "/api/djs", s.listDJs)
	r.HandleFunc("GET", "/api/djs/{id}", s.getDJ)
	r.HandleFunc("GET", "/api/banners", s.listBanners)
	r.HandleFunc("GET", "/api/radio", s.listStations)
	r.HandleFunc("GET", "/api/radio/{slug}", s.getStation)
	r.HandleFunc("GET", "/api/karaoke", s.listKaraoke)
	r.HandleFunc("GET", "/api/karaoke/{id}", s.getKaraoke)
	r.HandleFunc("GET", "/api/mixes", s.listMixes)
	r.HandleFunc("GET", "/api/mixes/{id}", s.getMix)
	r.HandleFunc("POST", "/api/mixes/{id}/play", s.playMix)
	r.HandleFunc("GET", "/api/mixes/{id}/queue", s.mixQueue)

	r.HandleFunc("POST", "/api/dj-requests", s.createDJRequest, authed)
	r.HandleFunc("GET", "/api/dj-requests/me", s.myDJRequests, authed)

	r.HandleFunc("GET", "/api/dj/mixes", s.myMixes, dj)
	r.HandleFunc("POST", "/api/dj/mixes", s.submitMix, dj)
	r.HandleFunc("PUT", "/api/dj/mixes/{id}", s.updateMix, dj)
	r.HandleFunc("DELETE", "/api/dj/mixes/{id}", s.deleteMix, dj)
	r.HandleFunc("POST", "/api/uploads", s.uploadAsset, dj)

	r.HandleFunc("GET", "/api/admin/stats", s.stats, admin)
	r.HandleFunc("GET", "/api/admin/mixes", s.adminMixes, admin)
	r.HandleFunc("POST", "/api/admin/mixes/{id}/approve", s.approveMix, admin)
	r.HandleFunc("POST", "/api/admin/mixes/{id}/reject", s.rejectMix, admin)
	r.HandleFunc("POST", "/api/admin/mixes/{id}/feature", s.featureMix, admin)
	r.HandleFunc("DELETE", "/api/admin/mixes/{id}", s.deleteMix, admin)
	r.HandleFunc("GET", "/api/admin/dj-requests", s.adminDJRequests, admin)
	r.HandleFunc("POST", "/api/admin/dj-requests/{id}/approve", s.approveDJRequest, admin)
	r.HandleFunc("POST", "/api/admin/dj-requests/{id}/reject", s.rejectDJRequest, admin)
	r.HandleFunc("GET", "/api/admin/users", s.adminUsers, admin)
	r.HandleFunc("PUT", "/api/admin/users/{id}/role", s.setUserRole, admin)

	r.HandleFunc("POST", "/api/admin/genres", s.createGenre, admin)
	r.HandleFunc("PUT", "/api/admin/genres/{id}", s.updateGenre, admin)
	r.HandleFunc("DELETE", "/api/admin/genres/{id}", s.deleteGenre, admin)
	r.HandleFunc("GET", "/api/admin/banners", s.adminBanners, admin)
	r.HandleFunc("POST", "/api/admin/banners", s.createBanner, admin)
	r.HandleFunc("PUT", "/api/admin/banners/{id}", s.updateBanner, admin)
	r.HandleFunc("DELETE", "/api/admin/banners/{id}", s.deleteBanner, admin)
	r.HandleFunc("GET", "/api/admin/stations", s.adminStations, admin)
	r.HandleFunc("POST", "/api/admin/stations", s.createStation, admin)
	r.HandleFunc("PUT", "/api/admin/stations/{id}", s.updateStation, admin)
	r.HandleFunc("DELETE", "/api/admin/stations/{id}", s.deleteStation, admin)
	r.HandleFunc("POST", "/api/admin/stations/probe", s.probeStations, admin)
	r.HandleFunc("POST", "/api/admin/karaoke", s.createKaraoke, admin)
	r.HandleFunc("PUT", "/api/admin/karaoke/{id}", s.updateKaraoke, admin)
	r.HandleFunc("DELETE", "/api/admin/karaoke/{id}", s.deleteKaraoke, admin)

	if local, ok := s.storage.(*services.LocalStorage); ok {
		r.Handle("GET", "/media/", http.StripPrefix("/media/", noListing(http.FileServer(http.Dir(local.Dir())))))
	}
	r.HandleFunc("", apiFallback, s.notFound)
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String(), "storage", s.storageName())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeoutDuration()
	s.logger.Info("shutting down server", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%w: graceful shutdown failed: %v", shared.ErrTimeout, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) storageName() string {
	if s.storage == nil {
		return "none"
	}
	return s.storage.Name()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	database := "ok"
	if err := s.store.DB.PingContext(r.Context()); err != nil {
		s.logger.Error("database ping failed", "error", err)
		status, database = http.StatusServiceUnavailable, "unavailable"
	}
	writeData(w, status, map[string]any{
		"status":   http.StatusText(status),
		"database": database,
		"storage":  s.storageName(),
		"google":   s.google != nil,
	})
}

const apiFallback = "/api/"

// notFound answers unrouted API requests, with 405 and an Allow header when only the method is wrong.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if allowed := s.router.AllowedMethods(r, apiFallback); len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		s.fail(w, r, fmt.Errorf("%w: %s %s", shared.ErrMethodNotAllowed, r.Method, r.URL.Path))
		return
	}
	s.fail(w, r, fmt.Errorf("%w: no route for %s %s", shared.ErrNotFound, r.Method, r.URL.Path))
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser returns the user set by [Authenticate]. Only call it behind [RequireAuth].
func currentUser(r *http.Request) *models.User {
	user, _ := UserFrom(r.Context())
	return user
}
