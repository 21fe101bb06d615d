// Package httpapi serves the read-only inspection API over the warehouse:
// layer counts, per-week aggregates, and the scored weekly ranking.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/weekly/internal/globaltime"
	"horse.fit/weekly/internal/store"
)

const (
	defaultTopLimit = 20
	maxTopLimit     = 200
)

var weekTagPattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	store  *store.Store
	logger zerolog.Logger
	opts   Options
}

type rankedEntry struct {
	Rank        int        `json:"rank"`
	UID         string     `json:"uid"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     string     `json:"summary"`
	Category    string     `json:"category"`
	SourceID    string     `json:"source_id"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Score       float64    `json:"score"`
}

type aggregateEntry struct {
	SourceID string `json:"source_id"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type weekItem struct {
	UID         string     `json:"uid"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	URL         string     `json:"url"`
	SourceID    string     `json:"source_id"`
	Category    string     `json:"category"`
	Region      string     `json:"region"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func NewServer(st *store.Store, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		store:  st,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

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

	s.logger.Info().Str("addr", addr).Msg("weekly api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("weekly api server stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
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
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/weeks/:year_week/top", s.handleWeekTop)
	api.GET("/weeks/:year_week/aggregates", s.handleWeekAggregates)
	api.GET("/weeks/:year_week/items", s.handleWeekItems)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
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
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "weekly",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	counts, err := s.store.Counts(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query layer counts failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, counts)
}

func (s *Server) handleWeekTop(c echo.Context) error {
	yearWeek, verr := weekParam(c)
	if verr != nil {
		return failValidation(c, verr)
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultTopLimit, 1, maxTopLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	rows, err := s.store.WeekTop(c.Request().Context(), yearWeek, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("year_week", yearWeek).Msg("query week ranking failed")
		return internalError(c, "Failed to load week ranking")
	}
	if len(rows) == 0 {
		return failNotFound(c, "No ranking for that week")
	}

	items := make([]rankedEntry, 0, len(rows))
	for _, r := range rows {
		items = append(items, rankedEntry{
			Rank:        r.Rank,
			UID:         r.UID,
			Title:       r.Title,
			URL:         r.URL,
			Summary:     r.Summary,
			Category:    r.Category,
			SourceID:    r.SourceID,
			PublishedAt: r.PublishedAt,
			Score:       r.Score,
		})
	}
	return success(c, map[string]any{
		"year_week": yearWeek,
		"items":     items,
	})
}

func (s *Server) handleWeekAggregates(c echo.Context) error {
	yearWeek, verr := weekParam(c)
	if verr != nil {
		return failValidation(c, verr)
	}

	rows, err := s.store.WeekAggregates(c.Request().Context(), yearWeek)
	if err != nil {
		s.logger.Error().Err(err).Str("year_week", yearWeek).Msg("query week aggregates failed")
		return internalError(c, "Failed to load week aggregates")
	}

	items := make([]aggregateEntry, 0, len(rows))
	for _, r := range rows {
		items = append(items, aggregateEntry{
			SourceID: r.SourceID,
			Category: r.Category,
			Count:    r.Count,
		})
	}
	return success(c, map[string]any{
		"year_week": yearWeek,
		"items":     items,
	})
}

func (s *Server) handleWeekItems(c echo.Context) error {
	yearWeek, verr := weekParam(c)
	if verr != nil {
		return failValidation(c, verr)
	}

	rows, err := s.store.AcceptedByWeek(c.Request().Context(), yearWeek)
	if err != nil {
		s.logger.Error().Err(err).Str("year_week", yearWeek).Msg("query week items failed")
		return internalError(c, "Failed to load week items")
	}

	items := make([]weekItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, weekItem{
			UID:         r.UID,
			Title:       r.Title,
			Summary:     r.Summary,
			URL:         r.URL,
			SourceID:    r.SourceID,
			Category:    r.Category,
			Region:      r.Region,
			PublishedAt: r.PublishedAt,
		})
	}
	return success(c, map[string]any{
		"year_week": yearWeek,
		"items":     items,
	})
}

func weekParam(c echo.Context) (string, map[string]string) {
	yearWeek := strings.TrimSpace(c.Param("year_week"))
	if !weekTagPattern.MatchString(yearWeek) {
		return "", map[string]string{"year_week": "must look like 2026-W34"}
	}
	return yearWeek, nil
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
