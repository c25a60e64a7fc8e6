package config

import (
	batteryHandler "BatteryDetect/internal/api/battery/handler"
	batteryService "BatteryDetect/internal/api/battery/service"
	"BatteryDetect/internal/locale"
	"BatteryDetect/internal/middleware"
	"BatteryDetect/pkg/batteryapi"
	"BatteryDetect/pkg/redis"
	"BatteryDetect/pkg/utils"
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	log            *logrus.Logger
	cfg            *AppConfig
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	text           locale.Catalog
	handlers       []handler
	sessionStore   redis.ISessionStore
	batteryAPI     batteryapi.IBatteryAPI
	batteryService batteryService.IBatteryService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if server.sessionStore == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if server.batteryAPI == nil {
		return nil, fmt.Errorf("battery api client is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAppConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithSessionStore(store redis.ISessionStore) ServerOption {
	return func(s *Server) error {
		s.sessionStore = store
		return nil
	}
}

func WithBatteryAPI(api batteryapi.IBatteryAPI) ServerOption {
	return func(s *Server) error {
		s.batteryAPI = api
		return nil
	}
}

func WithLocale() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be set before locale")
		}
		text, err := locale.Load(s.cfg.Locale)
		if err != nil {
			return err
		}
		s.text = text
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be set before utils")
		}
		s.utils = utils.New(s.cfg.MaxUploadBytes)
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.cfg == nil || s.utils == nil {
			return fmt.Errorf("app config and utils must be set before middleware")
		}
		s.middleware = middleware.New(s.log, s.utils, middleware.Options{
			SessionSecret: s.cfg.SessionSecret,
			SessionTTL:    s.cfg.SessionTTL,
			CookieSecure:  s.cfg.CookieSecure,
			RateLimit:     s.cfg.RateLimit,
			RateBurst:     s.cfg.RateBurst,
		})
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Battery Detection
	s.batteryService = batteryService.NewBatteryService(s.log, s.sessionStore, s.batteryAPI, batteryService.Options{
		AnalyzeTimeout: s.cfg.AnalyzeTimeout,
		StatusTimeout:  s.cfg.StatusTimeout,
		ImageProxy:     s.cfg.ImageProxy,
	})
	batteryHandlers := batteryHandler.New(s.log, s.validator, s.middleware, s.batteryService, s.utils, s.text, s.cfg.AnalyzeTimeout)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, batteryHandlers)
}

// CheckBackend runs the startup probe. An unreachable API is only logged:
// the page shows the warning and keeps working.
func (s *Server) CheckBackend(ctx context.Context) {
	if s.batteryService == nil {
		return
	}
	probe := s.batteryService.CheckStatus(ctx)
	if !probe.Reachable {
		s.log.Warnf("Detection api at %s is unreachable, continuing without it", s.batteryAPI.BaseURL())
	}
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewSessionMiddleware)
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	for _, h := range s.handlers {
		h.Start(s.engine)
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", s.cfg.Port)); err != nil {
		return err
	}

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	if err := s.engine.ShutdownWithTimeout(timeout); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// setupHealthCheck is registered before the session middleware so probes do
// not mint cookies.
func (s *Server) setupHealthCheck() {
	s.engine.Get("/healthz", func(ctx *fiber.Ctx) error {
		c, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
		defer cancel()

		redisStatus := "ok"
		code := fiber.StatusOK
		if err := s.sessionStore.Ping(c); err != nil {
			redisStatus = err.Error()
			code = fiber.StatusServiceUnavailable
		}

		return ctx.Status(code).JSON(fiber.Map{
			"message": "Server is Healthy!",
			"redis":   redisStatus,
		})
	})
}
