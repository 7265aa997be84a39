package server

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// NewApp builds a fiber app with recovery and request logging and registers h.
func NewApp(h *Handler, logger logrus.FieldLogger) *fiber.App {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	app := fiber.New(fiber.Config{
		AppName:      "visarchive",
		BodyLimit:    MaxImageBytes + 1<<20,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestLogger(logger))
	h.Register(app)
	return app
}

func requestLogger(logger logrus.FieldLogger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		err := c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(started),
		}).Info("request")
		return err
	}
}
