package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"kv-reconciler/core/loader"
	"kv-reconciler/core/logger"
	"kv-reconciler/core/metrics"
	"kv-reconciler/core/middleware/auth"
	"kv-reconciler/core/middleware/rayid"
	"kv-reconciler/feature/kv"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation HTTP API",
	Long:  `Starts the HTTP server, exposing reconcile and apply endpoints plus /health and /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		prom, err := metrics.NewPrometheus(nil)
		if err != nil {
			log.Fatalf("Failed to initialize metrics: %v", err)
		}

		a, err := newApp(prom)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		logg := a.logger
		defer a.close()
		zap.ReplaceGlobals(logg)

		if !a.cfg.Server.IsValidPort() {
			logg.Fatal("Invalid server port", zap.String("port", a.cfg.Server.Port))
		}

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			BodyLimit:             a.cfg.Server.BodyLimit(),
		})

		mgr := loader.NewManager(logg)
		mgr.Register(kv.NewFeature(a.service))

		// RayID must be first to trace everything
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		app.Use(auth.New(auth.Config{
			ApiKey: a.cfg.Server.ApiKey,
			Public: []string{"/health", "/metrics"},
		}))

		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok"})
		})
		app.Get("/metrics", prom.Handler())

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		go func() {
			logg.Info("Starting server",
				zap.String("port", a.cfg.Server.Port),
				zap.String("default_provider", a.cfg.Reconcile.Provider),
				zap.Bool("auth", a.cfg.Server.AuthEnabled()),
			)
			if err := app.Listen(":" + a.cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
