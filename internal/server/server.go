package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/orakle-ai/orakle/config"
	"github.com/orakle-ai/orakle/internal/capability"
	"github.com/orakle-ai/orakle/internal/telemetry"
)

// Server exposes the capability registry over HTTP.
type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	registry *capability.Registry
	logger   *log.Logger
}

func New(cfg config.ServerConfig, registry *capability.Registry, metrics *telemetry.Telemetry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	origins := []string{"*"}
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	s := &Server{
		echo:     e,
		cfg:      cfg,
		registry: registry,
		logger:   baseLogger,
	}

	api := e.Group("/api")
	if cfg.JWTSecret != "" {
		api.Use(authMiddleware([]byte(cfg.JWTSecret)))
	}
	api.GET("/capabilities", s.listCapabilities)
	api.GET("/match", s.matchCapabilities)
	api.POST("/run/:name", s.runCapability)

	return s
}

func (s *Server) listCapabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.List())
}

func (s *Server) matchCapabilities(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k := 5
	if err := echo.QueryParamsBinder(c).Int("k", &k).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid k")
	}
	caps, err := s.registry.Match(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, caps)
}

func (s *Server) runCapability(c echo.Context) error {
	name := c.Param("name")
	args := map[string]any{}
	if err := c.Bind(&args); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	out, err := s.registry.Run(c.Request().Context(), name, args)
	if err != nil {
		if strings.Contains(err.Error(), "unknown capability") {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"result": out})
}

// Echo returns the underlying router, mostly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) Start() error {
	addr := s.cfg.Address
	if addr == "" {
		addr = ":8100"
	}
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
