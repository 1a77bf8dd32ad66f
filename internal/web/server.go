// Package web serves the conversion form to browsers.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/nconklindev/sheet2xml/internal/api"
	"github.com/nconklindev/sheet2xml/internal/config"
	"github.com/nconklindev/sheet2xml/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	// maxRequestSize leaves room for the form fields next to the largest
	// accepted spreadsheet.
	maxRequestSize = 11 << 20
)

type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// New builds the router. Outgoing requests share one HTTP client and one
// rate limiter; credentials come from each request's session cookie.
func New(cfg *config.Config) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		limiter:    api.NewLimiter(cfg.RequestsPerMinute),
		log:        logger.Get(),
	}

	router := gin.New()
	router.MaxMultipartMemory = maxRequestSize
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery())
	router.Use(SecurityHeaders(cfg.APIOrigin()))
	router.Use(LoggingMiddleware(s.log))

	s.router = router
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/", s.showForm)
	s.router.POST("/", s.submitForm)
	s.router.GET(api.LoginPath, s.showLogin)
	s.router.POST(api.LoginPath, s.login)
	s.router.GET("/download/:id", s.download)
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// client returns a service client bound to the caller's session. A 401
// clears the cookie and calls onUnauthorized.
func (s *Server) client(c *gin.Context, onUnauthorized api.UnauthorizedHandler) *api.Client {
	return api.New(s.cfg.APIURL,
		api.WithHTTPClient(s.httpClient),
		api.WithCredentials(newCookieStore(c)),
		api.WithUnauthorizedHandler(onUnauthorized),
		api.WithLimiter(s.limiter),
		api.WithLogger(s.log),
	)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.log.Info().Str("listen", server.Addr).Str("api_url", s.cfg.APIURL).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("Server exited")
	return nil
}
