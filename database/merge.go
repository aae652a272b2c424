package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rationalize/resolution"
)

// Merge создает или обновляет маппинги для всех сырых значений запроса и
// записывает одну строку аудита. Вся операция выполняется в одной
// транзакции: частичное применение не наблюдаемо.
//
// Существующая запись для (category, raw_value) обновляется на месте:
// canonical/match_mode/source/confidence перезаписываются, статус
// принудительно approved. Повторное объединение не плодит дубликаты.
func (db *DB) Merge(req resolution.MergeRequest) (*resolution.AuditEntry, error) {
	if _, ok := resolution.ParseCategory(string(req.Category)); !ok {
		return nil, fmt.Errorf("unknown entity category: %q", req.Category)
	}
	if req.Canonical == "" {
		return nil, errors.New("canonical value must not be empty")
	}
	if len(req.RawValues) == 0 {
		return nil, errors.New("raw values must not be empty")
	}

	matchMode := orDefault(req.MatchMode, resolution.MatchModeExact)
	source := orDefault(req.Source, resolution.SourceManual)
	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, raw := range req.RawValues {
		_, err := tx.Exec(`
			INSERT INTO entity_mappings
				(entity_category, raw_value, canonical_value, match_mode,
				 status, source, confidence, created_by, created_at, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity_category, raw_value) DO UPDATE SET
				canonical_value = excluded.canonical_value,
				match_mode = excluded.match_mode,
				source = excluded.source,
				confidence = excluded.confidence,
				status = excluded.status,
				created_by = excluded.created_by,
				notes = excluded.notes`,
			req.Category, raw, req.Canonical, matchMode,
			resolution.StatusApproved, source, confidence,
			req.PerformedBy, now, req.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert mapping for %q: %w", raw, err)
		}
	}

	rawValuesJSON, err := json.Marshal(req.RawValues)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize raw values: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO merge_audit_log
			(entity_category, action, canonical_value, raw_values_json,
			 performed_by, performed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.Category, resolution.ActionMerge, req.Canonical,
		string(rawValuesJSON), req.PerformedBy, now, req.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit entry: %w", err)
	}
	auditID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}

	return &resolution.AuditEntry{
		ID:             auditID,
		Category:       req.Category,
		Action:         resolution.ActionMerge,
		CanonicalValue: req.Canonical,
		RawValues:      req.RawValues,
		PerformedBy:    req.PerformedBy,
		PerformedAt:    now,
		Notes:          req.Notes,
	}, nil
}

// Revert откатывает операцию объединения по идентификатору аудита.
//
// Закрывается с отказом без побочных эффектов: неизвестный id или уже
// откаченная запись дают (false, nil). При успехе удаляются ровно те
// маппинги (category, raw_value), которые перечислены в записи аудита;
// отсутствующие строки просто пропускаются. Маппинги, созданные другими
// операциями, не затрагиваются даже при совпадении канонической формы.
func (db *DB) Revert(auditID int64, performedBy string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin revert transaction: %w", err)
	}
	defer tx.Rollback()

	var category string
	var rawValuesJSON string
	var reverted bool
	var notes sql.NullString
	err = tx.QueryRow(`
		SELECT entity_category, raw_values_json, reverted, notes
		FROM merge_audit_log
		WHERE id = ?`, auditID).Scan(&category, &rawValuesJSON, &reverted, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load audit entry %d: %w", auditID, err)
	}
	if reverted {
		// Повторный откат — штатный исход конкурирующих действий
		// оператора, а не ошибка
		return false, nil
	}

	var rawValues []string
	if err := json.Unmarshal([]byte(rawValuesJSON), &rawValues); err != nil {
		return false, fmt.Errorf("corrupt raw_values_json in audit entry %d: %w", auditID, err)
	}

	for _, raw := range rawValues {
		_, err := tx.Exec(`
			DELETE FROM entity_mappings
			WHERE entity_category = ? AND raw_value = ?`, category, raw)
		if err != nil {
			return false, fmt.Errorf("failed to delete mapping for %q: %w", raw, err)
		}
	}

	updatedNotes := nullString(notes)
	if updatedNotes != "" {
		updatedNotes += "\n"
	}
	updatedNotes += "Reverted by " + performedBy

	_, err = tx.Exec(`
		UPDATE merge_audit_log
		SET reverted = 1, reverted_at = ?, notes = ?
		WHERE id = ?`, time.Now().UTC(), updatedNotes, auditID)
	if err != nil {
		return false, fmt.Errorf("failed to mark audit entry reverted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit revert: %w", err)
	}
	return true, nil
}

// GetAuditEntry возвращает запись аудита по id; (nil, nil) если записи нет
func (db *DB) GetAuditEntry(auditID int64) (*resolution.AuditEntry, error) {
	row := db.conn.QueryRow(`
		SELECT id, entity_category, action, canonical_value, raw_values_json,
			performed_by, performed_at, notes, reverted, reverted_at
		FROM merge_audit_log
		WHERE id = ?`, auditID)

	entry, err := scanAuditEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListAuditEntries возвращает журнал аудита категории, новые записи первыми
func (db *DB) ListAuditEntries(category resolution.EntityCategory, limit int) ([]resolution.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT id, entity_category, action, canonical_value, raw_values_json,
			performed_by, performed_at, notes, reverted, reverted_at
		FROM merge_audit_log
		WHERE entity_category = ?
		ORDER BY id DESC
		LIMIT ?`, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []resolution.AuditEntry{}
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// rowScanner общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAuditEntry читает строку merge_audit_log в доменную запись
func scanAuditEntry(row rowScanner) (*resolution.AuditEntry, error) {
	var entry resolution.AuditEntry
	var rawValuesJSON string
	var performedBy, notes sql.NullString
	var performedAt, revertedAt sql.NullTime

	err := row.Scan(&entry.ID, &entry.Category, &entry.Action,
		&entry.CanonicalValue, &rawValuesJSON, &performedBy, &performedAt,
		&notes, &entry.Reverted, &revertedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rawValuesJSON), &entry.RawValues); err != nil {
		return nil, fmt.Errorf("corrupt raw_values_json in audit entry %d: %w", entry.ID, err)
	}
	entry.PerformedBy = nullString(performedBy)
	entry.Notes = nullString(notes)
	if performedAt.Valid {
		entry.PerformedAt = performedAt.Time
	}
	if revertedAt.Valid {
		t := revertedAt.Time
		entry.RevertedAt = &t
	}
	return &entry, nil
}
