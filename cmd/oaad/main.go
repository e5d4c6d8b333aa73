package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/app"
	"github.com/suseoaa/oaacore/internal/export"
	"github.com/suseoaa/oaacore/internal/handlers"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to start service: %v", err)
	}
	defer service.Close()

	api := handlers.NewAPIHandler(service)

	http.HandleFunc("GET /api/v1/accounts", api.HandleListAccounts)
	http.HandleFunc("GET /api/v1/accounts/{student}/courses", api.HandleCourses)
	http.HandleFunc("GET /api/v1/accounts/{student}/grades", api.HandleGrades)
	http.HandleFunc("GET /api/v1/accounts/{student}/gpa", api.HandleGPA)
	http.HandleFunc("GET /api/v1/accounts/{student}/exams", api.HandleExams)
	http.HandleFunc("GET /api/v1/accounts/{student}/messages", api.HandleMessages)
	http.HandleFunc("POST /api/v1/accounts/{student}/sync", api.HandleSync)

	http.Handle("/metrics", promhttp.Handler())

	scheduler := gocron.NewScheduler(time.UTC)
	interval := time.Duration(service.Config.Sync.IntervalMinutes) * time.Minute
	if _, err := scheduler.Every(interval).Do(func() {
		service.SyncAll(context.Background())
	}); err != nil {
		logger.Error.Fatalf("Failed to schedule sync: %v", err)
	}
	scheduler.StartAsync()
	logger.Info.Printf("Syncing every %s", interval)

	if service.Config.Export.SheetID != "" {
		exporter, err := export.NewGradeSheetExporter(service)
		if err != nil {
			logger.Error.Fatalf("Failed to start grade export: %v", err)
		}
		defer exporter.Stop()
	}

	logger.Info.Printf("Starting oaad on %s", service.Config.Server.Port)
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("oaad server failed: %v", err)
	}
}
