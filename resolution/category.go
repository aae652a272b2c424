package resolution

import "time"

// EntityCategory категория сущности, подлежащей канонизации.
// Закрытый набор вариантов: добавление новой категории требует
// регистрации движка предложений в EnginesFor.
type EntityCategory string

const (
	CategoryLocation EntityCategory = "location"
	CategoryMaterial EntityCategory = "material"
	CategorySupplier EntityCategory = "supplier"
	CategoryCompany  EntityCategory = "company"
)

// AllCategories возвращает все поддерживаемые категории в фиксированном порядке
func AllCategories() []EntityCategory {
	return []EntityCategory{
		CategoryLocation,
		CategoryMaterial,
		CategorySupplier,
		CategoryCompany,
	}
}

// ParseCategory проверяет и приводит строку к EntityCategory
func ParseCategory(s string) (EntityCategory, bool) {
	category := EntityCategory(s)
	switch category {
	case CategoryLocation, CategoryMaterial, CategorySupplier, CategoryCompany:
		return category, true
	}
	return "", false
}

// Статусы записи маппинга
const (
	StatusApproved      = "approved"
	StatusPendingReview = "pending_review"
	StatusRejected      = "rejected"
)

// Режимы сопоставления сырого значения
const (
	MatchModeExact  = "exact"
	MatchModePrefix = "prefix"
)

// Происхождение решения о маппинге
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
)

// Действия журнала аудита
const (
	ActionMerge  = "merge"
	ActionSplit  = "split"
	ActionUpdate = "update"
	ActionRevert = "revert"
)

// MappingEntry строка таблицы маппингов: одно сырое значение -> каноническая форма.
// Уникальность по паре (Category, RawValue) обеспечивается хранилищем.
type MappingEntry struct {
	ID             int64          `json:"id"`
	Category       EntityCategory `json:"entity_category"`
	RawValue       string         `json:"raw_value"`
	CanonicalValue string         `json:"canonical_value"`
	MatchMode      string         `json:"match_mode"`
	Status         string         `json:"status"`
	Source         string         `json:"source"`
	Confidence     float64        `json:"confidence"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Notes          string         `json:"notes,omitempty"`
}

// AuditEntry строка журнала операций merge/revert.
// RawValues — точный и полный список сырых значений, затронутых операцией;
// revert удаляет ровно эти записи и ничего больше.
type AuditEntry struct {
	ID             int64          `json:"id"`
	Category       EntityCategory `json:"entity_category"`
	Action         string         `json:"action"`
	CanonicalValue string         `json:"canonical_value"`
	RawValues      []string       `json:"raw_values"`
	PerformedBy    string         `json:"performed_by"`
	PerformedAt    time.Time      `json:"performed_at"`
	Notes          string         `json:"notes,omitempty"`
	Reverted       bool           `json:"reverted"`
	RevertedAt     *time.Time     `json:"reverted_at,omitempty"`
}

// MergeRequest параметры операции объединения сырых значений под одной
// канонической формой
type MergeRequest struct {
	Category    EntityCategory `json:"entity_category"`
	Canonical   string         `json:"canonical_value"`
	RawValues   []string       `json:"raw_values"`
	MatchMode   string         `json:"match_mode"`
	Source      string         `json:"source"`
	Confidence  float64        `json:"confidence"`
	PerformedBy string         `json:"performed_by"`
	Notes       string         `json:"notes"`
}
