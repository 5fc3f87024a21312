package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"

	"bookwhisperer/config"
	"bookwhisperer/internal/api/audio"
	"bookwhisperer/internal/api/books"
	"bookwhisperer/internal/api/chapters"
	"bookwhisperer/internal/api/healthcheck"
	jobsapi "bookwhisperer/internal/api/jobs"
	"bookwhisperer/internal/api/voices"
	"bookwhisperer/internal/middleware"
	"bookwhisperer/internal/services/jobs"
	"bookwhisperer/pkg/logger"
)

func main() {
	if err := config.Init("config.yaml"); err != nil {
		logger.Fatal(err, "%v: invalid configuration", config.ModuleSetting)
	}

	app := fiber.New(fiber.Config{
		AppName:   config.Cfg.Server.AppName,
		BodyLimit: config.Cfg.Server.BodyLimit,
	})
	middleware.Setup(app)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := jobs.NewQueue()
	runner := jobs.NewRunner(queue)
	runner.Start(ctx)

	// routes
	api := app.Group("/api/v1")
	healthcheck.RegisterRoutes(api)
	books.RegisterRoutes(api, queue)
	chapters.RegisterRoutes(api, queue)
	jobsapi.RegisterRoutes(api)
	audio.RegisterRoutes(api)
	voices.RegisterRoutes(api)

	// graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("%v: shutting down", config.ModuleServer)
		if err := app.Shutdown(); err != nil {
			logger.Error(err, "%v: shutdown error", config.ModuleServer)
		}
	}()

	addr := fmt.Sprintf(":%d", config.Cfg.Server.Port)
	if err := app.Listen(addr); err != nil {
		logger.Error(err, "%v: server error", config.ModuleServer)
	}

	// Stop the workers and drain before exiting.
	cancel()
	runner.Wait()
	if err := queue.Close(); err != nil {
		logger.Error(err, "%v: queue close error", config.ModuleJobs)
	}
}
