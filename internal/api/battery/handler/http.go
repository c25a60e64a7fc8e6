package batteryHandler

import (
	batteryService "BatteryDetect/internal/api/battery/service"
	"BatteryDetect/internal/locale"
	"BatteryDetect/internal/middleware"
	"BatteryDetect/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type BatteryHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	batteryService batteryService.IBatteryService
	utils          utils.IUtils
	text           locale.Catalog
	analyzeTimeout time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	bs batteryService.IBatteryService,
	utils utils.IUtils,
	text locale.Catalog,
	analyzeTimeout time.Duration,
) *BatteryHandler {
	return &BatteryHandler{
		batteryService: bs,
		log:            log,
		validator:      validator,
		middleware:     middleware,
		utils:          utils,
		text:           text,
		analyzeTimeout: analyzeTimeout,
	}
}

func (h *BatteryHandler) Start(srv fiber.Router) {
	srv.Get("/", h.Index)
	srv.Post("/select", h.middleware.NewRateLimiter, h.SelectFile)
	srv.Post("/analyze", h.middleware.NewRateLimiter, h.Analyze)
	srv.Post("/reset", h.Reset)
	srv.Get("/status", h.Status)
	srv.Get("/images/:filename", h.Image)
}
