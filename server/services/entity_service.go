package services

import (
	"context"
	"fmt"
	"log/slog"

	"rationalize/database"
	"rationalize/resolution"
	apperrors "rationalize/server/errors"
)

// EntityService сервис операций Entity Resolution: разрешение значений,
// объединение, откат, предложения и пакетное авторазрешение
type EntityService struct {
	db         *database.DB
	geocoder   resolution.Geocoder // может быть nil
	thresholds resolution.Thresholds
	logger     *slog.Logger
}

// NewEntityService создает новый сервис Entity Resolution
func NewEntityService(db *database.DB, geocoder resolution.Geocoder, thresholds resolution.Thresholds, logger *slog.Logger) *EntityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityService{
		db:         db,
		geocoder:   geocoder,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Resolver строит резолвер над текущим снимком approved-маппингов категории
func (s *EntityService) Resolver(category resolution.EntityCategory) (*resolution.Resolver, error) {
	exact, err := s.db.ExactMappings(category)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось загрузить exact-маппинги")
	}
	prefix, err := s.db.PrefixMappings(category)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось загрузить prefix-маппинги")
	}
	return resolution.NewResolver(exact, prefix), nil
}

// Resolve разрешает одно сырое значение в каноническую форму
func (s *EntityService) Resolve(category resolution.EntityCategory, value string) (string, error) {
	resolver, err := s.Resolver(category)
	if err != nil {
		return "", err
	}
	return resolver.Resolve(value), nil
}

// ResolveAll разрешает срез значений одним снимком маппингов
func (s *EntityService) ResolveAll(category resolution.EntityCategory, values []string) ([]string, error) {
	resolver, err := s.Resolver(category)
	if err != nil {
		return nil, err
	}
	return resolver.ResolveAll(values), nil
}

// ExpandCanonical возвращает каноническое значение вместе со всеми его
// сырыми вариантами (для расширения фильтров)
func (s *EntityService) ExpandCanonical(category resolution.EntityCategory, canonical string) ([]string, error) {
	values, err := s.db.ExpandCanonical(category, canonical)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось расширить каноническое значение")
	}
	return values, nil
}

// PendingReviews возвращает очередь ревью категории
func (s *EntityService) PendingReviews(category resolution.EntityCategory) ([]resolution.MappingEntry, error) {
	entries, err := s.db.PendingReviews(category)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось загрузить очередь ревью")
	}
	return entries, nil
}

// Mappings возвращает все маппинги категории (для админки)
func (s *EntityService) Mappings(category resolution.EntityCategory) ([]resolution.MappingEntry, error) {
	entries, err := s.db.Mappings(category)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось загрузить маппинги")
	}
	return entries, nil
}

// ReverseMappings возвращает группировку raw-значений по канонической форме
func (s *EntityService) ReverseMappings(category resolution.EntityCategory) (map[string][]string, error) {
	reverse, err := s.db.ReverseMappings(category)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось загрузить обратные маппинги")
	}
	return reverse, nil
}

// DistinctCanonicalValues возвращает различные канонические значения
// категории для выпадающих фильтров
func (s *EntityService) DistinctCanonicalValues(category resolution.EntityCategory) ([]string, error) {
	values, err := s.db.DistinctCanonicalValues(category)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось загрузить значения категории")
	}
	return values, nil
}

// Merge транзакционно объединяет сырые значения под канонической формой
func (s *EntityService) Merge(req resolution.MergeRequest) (*resolution.AuditEntry, error) {
	if _, ok := resolution.ParseCategory(string(req.Category)); !ok {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("неизвестная категория сущности: %q", req.Category), nil)
	}
	if req.Canonical == "" {
		return nil, apperrors.NewValidationError("каноническое значение не задано", nil)
	}
	if len(req.RawValues) == 0 {
		return nil, apperrors.NewValidationError("список сырых значений пуст", nil)
	}
	if req.MatchMode != "" &&
		req.MatchMode != resolution.MatchModeExact &&
		req.MatchMode != resolution.MatchModePrefix {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("неизвестный режим сопоставления: %q", req.MatchMode), nil)
	}

	audit, err := s.db.Merge(req)
	if err != nil {
		return nil, apperrors.WrapError(err, "объединение не удалось")
	}

	s.logger.Info("выполнено объединение",
		"category", req.Category,
		"canonical", req.Canonical,
		"raw_values", len(req.RawValues),
		"performed_by", req.PerformedBy,
		"audit_id", audit.ID)
	return audit, nil
}

// Revert откатывает объединение по id аудита. false означает, что записи
// нет или она уже откачена — без побочных эффектов.
func (s *EntityService) Revert(auditID int64, performedBy string) (bool, error) {
	ok, err := s.db.Revert(auditID, performedBy)
	if err != nil {
		return false, apperrors.WrapError(err, "откат не удался")
	}
	if ok {
		s.logger.Info("объединение откачено", "audit_id", auditID, "performed_by", performedBy)
	}
	return ok, nil
}

// AuditLog возвращает журнал операций категории
func (s *EntityService) AuditLog(category resolution.EntityCategory, limit int) ([]resolution.AuditEntry, error) {
	entries, err := s.db.ListAuditEntries(category, limit)
	if err != nil {
		return nil, apperrors.WrapError(err, "не удалось загрузить журнал аудита")
	}
	return entries, nil
}

// Suggest запускает движок предложений одной категории
func (s *EntityService) Suggest(ctx context.Context, category resolution.EntityCategory) ([]resolution.Suggestion, error) {
	engine := s.engineFor(category)
	if engine == nil {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("неизвестная категория сущности: %q", category), nil)
	}
	suggestions, err := engine.Suggest(ctx)
	if err != nil {
		return nil, apperrors.WrapError(err, "движок предложений завершился с ошибкой")
	}
	return suggestions, nil
}

// AutoResolve запускает все движки и применяет решения по порогам
func (s *EntityService) AutoResolve(ctx context.Context) (resolution.Stats, error) {
	engines := resolution.EnginesFor(s.db, s.geocoder)
	orchestrator := resolution.NewOrchestrator(s.db, engines, s.thresholds, s.logger)
	stats, err := orchestrator.Run(ctx)
	if err != nil {
		return stats, apperrors.WrapError(err, "пакетное разрешение завершилось с ошибкой")
	}
	s.logger.Info("пакетное разрешение завершено",
		"auto_merged", stats.AutoMerged,
		"pending_review", stats.PendingReview,
		"ignored", stats.Ignored)
	return stats, nil
}

// engineFor возвращает движок предложений для категории
func (s *EntityService) engineFor(category resolution.EntityCategory) resolution.SuggestionEngine {
	switch category {
	case resolution.CategoryLocation:
		return resolution.NewLocationEngine(s.db, s.geocoder)
	case resolution.CategoryMaterial:
		return resolution.NewMaterialEngine(s.db)
	case resolution.CategorySupplier:
		return resolution.NewSupplierEngine(s.db)
	case resolution.CategoryCompany:
		return resolution.NewCompanyEngine(s.db)
	}
	return nil
}
