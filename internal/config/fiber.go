package config

import (
	"BatteryDetect/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, cfg *AppConfig) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Battery Detection Web",
			BodyLimit:         int(cfg.MaxUploadBytes) + 1024*1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: cfg.Env == "development",
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      handlerUtil.New(logger).FiberErrorHandler,
		})

	return app
}
