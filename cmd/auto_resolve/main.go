// Утилита пакетного авторазрешения: запускает все движки предложений и
// применяет решения по порогам, не поднимая HTTP-сервер.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"rationalize/database"
	"rationalize/geocoding"
	"rationalize/internal/config"
	"rationalize/resolution"
)

func main() {
	configPath := flag.String("config", "config.json", "Путь к файлу конфигурации")
	dbPath := flag.String("db", "", "Путь к базе данных (переопределяет конфигурацию)")
	autoMerge := flag.Float64("auto-merge", 0, "Порог автоматического объединения (0 = из конфигурации)")
	review := flag.Float64("review", 0, "Порог постановки на ревью (0 = из конфигурации)")
	noGeocoding := flag.Bool("no-geocoding", false, "Отключить геокодирование локаций")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	thresholds := cfg.Thresholds()
	if *autoMerge > 0 {
		thresholds.AutoMerge = *autoMerge
	}
	if *review > 0 {
		thresholds.Review = *review
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Ошибка открытия базы данных: %v", err)
	}
	defer db.Close()

	var geocoder resolution.Geocoder
	if cfg.Geocoding.Enabled && !*noGeocoding {
		client := geocoding.NewNominatimClient(
			geocoding.WithBaseURL(cfg.Geocoding.BaseURL),
			geocoding.WithUserAgent(cfg.Geocoding.UserAgent),
			geocoding.WithTimeout(cfg.GeocodingTimeout()),
		)
		cached, err := geocoding.NewCachedGeocoder(client, geocoding.NewFileStore(cfg.Geocoding.CachePath), logger)
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

	engines := resolution.EnginesFor(db, geocoder)
	orchestrator := resolution.NewOrchestrator(db, engines, thresholds, logger)

	stats, err := orchestrator.Run(context.Background())
	if err != nil {
		log.Fatalf("Пакетное разрешение завершилось с ошибкой: %v", err)
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("✓ Авторазрешение завершено (пороги: merge=%.2f review=%.2f)\n",
		thresholds.AutoMerge, thresholds.Review)
	fmt.Printf("  Объединено автоматически: %d\n", stats.AutoMerged)
	fmt.Printf("  Поставлено на ревью:      %d\n", stats.PendingReview)
	fmt.Printf("  Проигнорировано:          %d\n", stats.Ignored)
	fmt.Println("═══════════════════════════════════════════════════════")
}
