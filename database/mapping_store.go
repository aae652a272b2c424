package database

import (
	"database/sql"
	"fmt"
	"time"

	"rationalize/resolution"
)

// Операции чтения над таблицей entity_mappings. Путь чтения никогда не
// мутирует состояние; в разрешении участвуют только approved-записи.

// ExactMappings возвращает {raw_value: canonical_value} для approved-записей
// с режимом exact
func (db *DB) ExactMappings(category resolution.EntityCategory) (map[string]string, error) {
	return db.mappingsByMode(category, resolution.MatchModeExact)
}

// PrefixMappings возвращает {raw_value: canonical_value} для approved-записей
// с режимом prefix. Используются резолвером для префиксного сопоставления:
// любое значение, начинающееся с raw_value, разрешается в canonical_value.
func (db *DB) PrefixMappings(category resolution.EntityCategory) (map[string]string, error) {
	return db.mappingsByMode(category, resolution.MatchModePrefix)
}

func (db *DB) mappingsByMode(category resolution.EntityCategory, mode string) (map[string]string, error) {
	rows, err := db.conn.Query(`
		SELECT raw_value, canonical_value
		FROM entity_mappings
		WHERE entity_category = ? AND status = ? AND match_mode = ?`,
		category, resolution.StatusApproved, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s mappings: %w", mode, err)
	}
	defer rows.Close()

	mappings := make(map[string]string)
	for rows.Next() {
		var raw, canonical string
		if err := rows.Scan(&raw, &canonical); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		mappings[raw] = canonical
	}
	return mappings, rows.Err()
}

// ReverseMappings возвращает {canonical_value: [raw_value, ...]} по
// approved-записям обоих режимов. Используется для расширения фильтров.
func (db *DB) ReverseMappings(category resolution.EntityCategory) (map[string][]string, error) {
	rows, err := db.conn.Query(`
		SELECT raw_value, canonical_value
		FROM entity_mappings
		WHERE entity_category = ? AND status = ?
		ORDER BY id`,
		category, resolution.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query reverse mappings: %w", err)
	}
	defer rows.Close()

	reverse := make(map[string][]string)
	for rows.Next() {
		var raw, canonical string
		if err := rows.Scan(&raw, &canonical); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		reverse[canonical] = append(reverse[canonical], raw)
	}
	return reverse, rows.Err()
}

// ExpandCanonical возвращает все сырые значения, указывающие на canonical
// (только approved). Само каноническое значение всегда включается первым,
// даже если для него нет собственной строки — SQL IN по результату должен
// ловить и каноническую форму, и все варианты.
func (db *DB) ExpandCanonical(category resolution.EntityCategory, canonical string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT raw_value
		FROM entity_mappings
		WHERE entity_category = ? AND canonical_value = ? AND status = ?
		ORDER BY id`,
		category, canonical, resolution.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to expand canonical: %w", err)
	}
	defer rows.Close()

	values := []string{}
	containsCanonical := false
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan raw value: %w", err)
		}
		if raw == canonical {
			containsCanonical = true
		}
		values = append(values, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !containsCanonical {
		values = append([]string{canonical}, values...)
	}
	return values, nil
}

// PendingReviews возвращает записи со статусом pending_review, сначала с
// наибольшей уверенностью; при равной уверенности — в порядке вставки
func (db *DB) PendingReviews(category resolution.EntityCategory) ([]resolution.MappingEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, entity_category, raw_value, canonical_value, match_mode,
			status, source, confidence, created_by, created_at, notes
		FROM entity_mappings
		WHERE entity_category = ? AND status = ?
		ORDER BY confidence DESC, id ASC`,
		category, resolution.StatusPendingReview)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}
	defer rows.Close()

	return scanMappingEntries(rows)
}

// Mappings возвращает все записи категории независимо от статуса
// (для админки и экспорта)
func (db *DB) Mappings(category resolution.EntityCategory) ([]resolution.MappingEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, entity_category, raw_value, canonical_value, match_mode,
			status, source, confidence, created_by, created_at, notes
		FROM entity_mappings
		WHERE entity_category = ?
		ORDER BY canonical_value, raw_value`,
		category)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	return scanMappingEntries(rows)
}

// ApprovedRawValues возвращает множество сырых значений, уже имеющих
// approved-маппинг. Оркестратор не трогает такие значения повторно.
func (db *DB) ApprovedRawValues(category resolution.EntityCategory) (map[string]bool, error) {
	rows, err := db.conn.Query(`
		SELECT raw_value
		FROM entity_mappings
		WHERE entity_category = ? AND status = ?`,
		category, resolution.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved raw values: %w", err)
	}
	defer rows.Close()

	approved := make(map[string]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan raw value: %w", err)
		}
		approved[raw] = true
	}
	return approved, rows.Err()
}

// HasMapping проверяет наличие записи для (category, rawValue) в любом статусе
func (db *DB) HasMapping(category resolution.EntityCategory, rawValue string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM entity_mappings
			WHERE entity_category = ? AND raw_value = ?
		)`, category, rawValue).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check mapping existence: %w", err)
	}
	return exists, nil
}

// InsertPendingReview вставляет запись со статусом pending_review.
// Используется оркестратором для среднеуверенных предложений.
func (db *DB) InsertPendingReview(entry resolution.MappingEntry) error {
	_, err := db.conn.Exec(`
		INSERT INTO entity_mappings
			(entity_category, raw_value, canonical_value, match_mode,
			 status, source, confidence, created_by, created_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Category, entry.RawValue, entry.CanonicalValue,
		orDefault(entry.MatchMode, resolution.MatchModeExact),
		resolution.StatusPendingReview,
		orDefault(entry.Source, resolution.SourceAuto),
		entry.Confidence, entry.CreatedBy, time.Now().UTC(), entry.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert pending review: %w", err)
	}
	return nil
}

// scanMappingEntries читает строки entity_mappings в доменные записи
func scanMappingEntries(rows *sql.Rows) ([]resolution.MappingEntry, error) {
	entries := []resolution.MappingEntry{}
	for rows.Next() {
		var entry resolution.MappingEntry
		var createdBy, notes sql.NullString
		var createdAt sql.NullTime
		err := rows.Scan(&entry.ID, &entry.Category, &entry.RawValue,
			&entry.CanonicalValue, &entry.MatchMode, &entry.Status,
			&entry.Source, &entry.Confidence, &createdBy, &createdAt, &notes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping entry: %w", err)
		}
		entry.CreatedBy = nullString(createdBy)
		entry.Notes = nullString(notes)
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// orDefault возвращает fallback, если значение пустое
func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
