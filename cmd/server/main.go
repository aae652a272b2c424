// @title Rationalize Entity Resolution API
// @version 1.0
// @description API движка разрешения сущностей: канонизация локаций, материалов, поставщиков и компаний, предложения об объединении и аудит.

// @host localhost:8090
// @BasePath /api
// @schemes http

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rationalize/database"
	"rationalize/geocoding"
	"rationalize/internal/config"
	"rationalize/resolution"
	"rationalize/server"
	"rationalize/server/services"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════")
	log.Println("🚀 Запуск Rationalize Entity Resolution Server...")

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Ошибка создания базы данных: %v", err)
	}
	defer db.Close()

	// Геокодер опционален: без него движок локаций работает на fuzzy-сравнении
	var geocoder resolution.Geocoder
	var cached *geocoding.CachedGeocoder
	if cfg.Geocoding.Enabled {
		client := geocoding.NewNominatimClient(
			geocoding.WithBaseURL(cfg.Geocoding.BaseURL),
			geocoding.WithUserAgent(cfg.Geocoding.UserAgent),
			geocoding.WithTimeout(cfg.GeocodingTimeout()),
		)
		cached, err = geocoding.NewCachedGeocoder(client, geocoding.NewFileStore(cfg.Geocoding.CachePath), logger)
		if err != nil {
			log.Fatalf("Ошибка загрузки кэша геокодирования: %v", err)
		}
		geocoder = cached
		defer func() {
			if err := cached.Flush(); err != nil {
				logger.Warn("не удалось сохранить кэш геокодирования", "error", err)
			}
		}()
	}

	entityService := services.NewEntityService(db, geocoder, cfg.Thresholds(), logger)
	exportService := services.NewExportService(db)

	router := server.NewRouter(entityService, exportService, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("✗ КРИТИЧЕСКАЯ ОШИБКА: Ошибка запуска сервера: %v", err)
		}
	}()

	log.Println("═══════════════════════════════════════════════════════")
	log.Printf("✓ Сервер успешно запущен на порту %s", cfg.Port)
	log.Printf("✓ API доступно: http://localhost:%s/api", cfg.Port)
	log.Printf("✓ База данных: %s", cfg.DatabasePath)
	log.Printf("✓ Пороги авторазрешения: auto_merge=%.2f review=%.2f",
		cfg.EntityResolution.AutoMergeThreshold, cfg.EntityResolution.ReviewThreshold)
	log.Println("  Для остановки нажмите Ctrl+C")
	log.Println("═══════════════════════════════════════════════════════")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("⏹  Получен сигнал завершения, останавливаю сервер...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("✗ Ошибка при остановке сервера: %v", err)
		return
	}
	log.Println("✓ Сервер успешно остановлен")
}

// newLogger создает slog-логгер с уровнем из конфигурации
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
