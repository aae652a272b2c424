package resolution

import (
	"context"
	"fmt"
	"log/slog"
)

// Thresholds пороги уверенности для пакетного разрешения
type Thresholds struct {
	// AutoMerge минимальная уверенность для автоматического объединения
	AutoMerge float64 `json:"auto_merge_threshold"`
	// Review минимальная уверенность для постановки в очередь ревью
	Review float64 `json:"review_threshold"`
}

// DefaultThresholds пороги по умолчанию при отсутствии конфигурации
func DefaultThresholds() Thresholds {
	return Thresholds{AutoMerge: 0.90, Review: 0.50}
}

// MappingStore операции хранилища маппингов, нужные оркестратору
type MappingStore interface {
	// ApprovedRawValues множество сырых значений с approved-маппингом
	ApprovedRawValues(category EntityCategory) (map[string]bool, error)
	// HasMapping проверяет наличие записи любого статуса
	HasMapping(category EntityCategory, rawValue string) (bool, error)
	// InsertPendingReview вставляет запись со статусом pending_review
	InsertPendingReview(entry MappingEntry) error
	// Merge транзакционно применяет объединение и пишет аудит
	Merge(req MergeRequest) (*AuditEntry, error)
}

// Stats счетчики пакетного прогона: один инкремент на предложение
type Stats struct {
	AutoMerged    int `json:"auto_merged"`
	PendingReview int `json:"pending_review"`
	Ignored       int `json:"ignored"`
}

// Orchestrator запускает все движки предложений и применяет решения
// по настроенным порогам
type Orchestrator struct {
	store      MappingStore
	engines    []SuggestionEngine
	thresholds Thresholds
	logger     *slog.Logger
}

// NewOrchestrator создает оркестратор автоматического разрешения
func NewOrchestrator(store MappingStore, engines []SuggestionEngine, thresholds Thresholds, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:      store,
		engines:    engines,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Run обрабатывает все категории, одну за другой. Пустая база дает
// нулевую статистику. Сбой одного движка или одного объединения не
// прерывает пакет: предложение учитывается как ignored.
func (o *Orchestrator) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for _, engine := range o.engines {
		category := engine.Category()

		suggestions, err := engine.Suggest(ctx)
		if err != nil {
			o.logger.Error("движок предложений завершился с ошибкой",
				"category", category, "error", err)
			continue
		}
		if len(suggestions) == 0 {
			continue
		}

		// Уже одобренные значения не трогаем: защищаем ручные решения.
		// Снимок берется один раз на категорию; в пределах прохода движок
		// потребляет каждое значение не более одного раза.
		approved, err := o.store.ApprovedRawValues(category)
		if err != nil {
			return stats, fmt.Errorf("failed to load approved raw values for %s: %w", category, err)
		}

		for _, suggestion := range suggestions {
			o.apply(category, suggestion, approved, &stats)
		}
	}

	return stats, nil
}

// apply применяет одно предложение и обновляет счетчики
func (o *Orchestrator) apply(category EntityCategory, suggestion Suggestion, approved map[string]bool, stats *Stats) {
	aliases := make([]string, 0, len(suggestion.Aliases))
	for _, alias := range suggestion.Aliases {
		if !approved[alias] {
			aliases = append(aliases, alias)
		}
	}
	if len(aliases) == 0 {
		stats.Ignored++
		return
	}

	switch {
	case suggestion.Confidence >= o.thresholds.AutoMerge:
		_, err := o.store.Merge(MergeRequest{
			Category:    category,
			Canonical:   suggestion.Canonical,
			RawValues:   aliases,
			MatchMode:   MatchModeExact,
			Source:      SourceAuto,
			Confidence:  suggestion.Confidence,
			PerformedBy: "auto_resolution",
			Notes:       fmt.Sprintf("Auto-merged by resolution engine (source=%s)", suggestion.Source),
		})
		if err != nil {
			o.logger.Error("автообъединение не удалось",
				"category", category,
				"canonical", suggestion.Canonical,
				"aliases", aliases,
				"error", err)
			stats.Ignored++
			return
		}
		stats.AutoMerged++

	case suggestion.Confidence >= o.thresholds.Review:
		for _, alias := range aliases {
			// Запись любого статуса блокирует вставку: не плодим
			// конфликтующие pending-записи
			exists, err := o.store.HasMapping(category, alias)
			if err != nil || exists {
				continue
			}
			err = o.store.InsertPendingReview(MappingEntry{
				Category:       category,
				RawValue:       alias,
				CanonicalValue: suggestion.Canonical,
				MatchMode:      MatchModeExact,
				Status:         StatusPendingReview,
				Source:         SourceAuto,
				Confidence:     suggestion.Confidence,
				CreatedBy:      "auto_resolution",
				Notes:          fmt.Sprintf("Suggested by resolution engine (source=%s)", suggestion.Source),
			})
			if err != nil {
				o.logger.Error("не удалось создать pending-запись",
					"category", category, "raw_value", alias, "error", err)
			}
		}
		stats.PendingReview++

	default:
		stats.Ignored++
	}
}
