package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"horse.fit/catalog/internal/catalog"
	"horse.fit/catalog/internal/db"
	"horse.fit/catalog/internal/language"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// CatalogService is what the handlers need from *catalog.Service.
type CatalogService interface {
	Languages() []string

	CreateProduct(ctx context.Context, in catalog.ProductInput) (*db.Product, error)
	GetProduct(ctx context.Context, productID int64) (*db.Product, error)
	ListProducts(ctx context.Context, page catalog.Page) ([]db.Product, int64, error)
	UpdateProduct(ctx context.Context, productID int64, in catalog.ProductInput) (*db.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error
	RetranslateProduct(ctx context.Context, productID int64) (*db.Product, catalog.RetranslateResult, error)

	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*db.Category, error)
	GetCategory(ctx context.Context, categoryID int64) (*db.Category, error)
	ListCategories(ctx context.Context, page catalog.Page) ([]db.Category, int64, error)
	UpdateCategory(ctx context.Context, categoryID int64, in catalog.CategoryInput) (*db.Category, error)
	DeleteCategory(ctx context.Context, categoryID int64) error
	RetranslateCategory(ctx context.Context, categoryID int64) (*db.Category, catalog.RetranslateResult, error)
}

// HealthChecker reports whether the database answers. *db.Pool implements it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
}

type Server struct {
	service    CatalogService
	negotiator *language.Negotiator
	health     HealthChecker
	logger     zerolog.Logger
	opts       Options
}

func NewServer(service CatalogService, negotiator *language.Negotiator, health HealthChecker, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	if negotiator == nil {
		negotiator = language.NewNegotiator(service.Languages(), language.DefaultCode)
	}

	return &Server{
		service:    service,
		negotiator: negotiator,
		health:     health,
		logger:     logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  opts.AllowedOrigins,
		},
	}
}

// Handler builds the echo instance with every middleware and route.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", headerAcceptLanguage},
		ExposeHeaders: []string{headerContentLanguage},
		MaxAge:        3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			msg := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				msg = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Str("language", activeLanguage(c)).
				Msg(msg)
			return nil
		},
	}))
	e.Use(negotiateLanguage(s.negotiator))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/languages", s.handleLanguages)

	api.GET("/products", s.handleListProducts)
	api.POST("/products", s.handleCreateProduct)
	api.GET("/products/:id", s.handleGetProduct)
	api.PUT("/products/:id", s.handleUpdateProduct)
	api.DELETE("/products/:id", s.handleDeleteProduct)
	api.POST("/products/:id/retranslate", s.handleRetranslateProduct)

	api.GET("/categories", s.handleListCategories)
	api.POST("/categories", s.handleCreateCategory)
	api.GET("/categories/:id", s.handleGetCategory)
	api.PUT("/categories/:id", s.handleUpdateCategory)
	api.DELETE("/categories/:id", s.handleDeleteCategory)
	api.POST("/categories/:id/retranslate", s.handleRetranslateCategory)

	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.service == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().
		Str("addr", addr).
		Strs("languages", s.negotiator.Supported()).
		Msg("catalog api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("catalog api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Error().Err(err).Msg("database health check failed")
			return errorWithStatus(c, http.StatusServiceUnavailable, "Database unavailable", map[string]any{
				"database": "unavailable",
			})
		}
	}
	return success(c, map[string]any{
		"service":  "catalog",
		"time":     time.Now().UTC(),
		"database": "ok",
	})
}

func (s *Server) handleLanguages(c echo.Context) error {
	return success(c, map[string]any{
		"items":    language.Options(s.negotiator.Supported(), s.negotiator.Default()),
		"default":  s.negotiator.Default(),
		"language": activeLanguage(c),
	})
}

type pageRequest struct {
	Page     int
	PageSize int
}

func (p pageRequest) catalogPage() catalog.Page {
	return catalog.Page{Offset: (p.Page - 1) * p.PageSize, Limit: p.PageSize}
}

func (p pageRequest) pagination(total int64) map[string]any {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return map[string]any{
		"page":        p.Page,
		"page_size":   p.PageSize,
		"total_items": total,
		"total_pages": totalPages,
	}
}

func parsePage(c echo.Context) (pageRequest, map[string]string) {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return pageRequest{}, map[string]string{"page": err.Error()}
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return pageRequest{}, map[string]string{"page_size": err.Error()}
	}
	return pageRequest{Page: page, PageSize: pageSize}, nil
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return id, nil
}
