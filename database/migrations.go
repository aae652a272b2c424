package database

import (
	"fmt"
	"strings"
)

// migrate применяет все миграции схемы. Миграции идемпотентны:
// повторный запуск на существующей базе ничего не ломает.
func (db *DB) migrate() error {
	if err := db.createEntityMappingTables(); err != nil {
		return err
	}
	return db.createDocumentTables()
}

// createEntityMappingTables создает таблицы ядра Entity Resolution:
// маппинги raw -> canonical и журнал аудита операций merge/revert
func (db *DB) createEntityMappingTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entity_mappings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_category TEXT NOT NULL,
			raw_value TEXT NOT NULL,
			canonical_value TEXT NOT NULL,
			match_mode TEXT NOT NULL DEFAULT 'exact',
			status TEXT NOT NULL DEFAULT 'approved',
			source TEXT NOT NULL DEFAULT 'manual',
			confidence REAL NOT NULL DEFAULT 1.0,
			created_by TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			notes TEXT,
			UNIQUE(entity_category, raw_value)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_mappings_category_status
			ON entity_mappings(entity_category, status)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_mappings_canonical
			ON entity_mappings(entity_category, canonical_value)`,
		`CREATE TABLE IF NOT EXISTS merge_audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_category TEXT NOT NULL,
			action TEXT NOT NULL DEFAULT 'merge',
			canonical_value TEXT NOT NULL,
			raw_values_json TEXT NOT NULL,
			performed_by TEXT,
			performed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			notes TEXT,
			reverted INTEGER NOT NULL DEFAULT 0,
			reverted_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_merge_audit_log_category
			ON merge_audit_log(entity_category)`,
	}
	return db.execMigrations(statements)
}

// createDocumentTables создает таблицы источника строк документов:
// поставщики, документы (счета, накладные) и строки счетов, из которых
// берутся сырые значения для разрешения
func (db *DB) createDocumentTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS suppliers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT,
			doc_type TEXT NOT NULL DEFAULT 'invoice',
			client_name TEXT,
			supplier_id INTEGER REFERENCES suppliers(id),
			issued_on DATE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER REFERENCES documents(id),
			description TEXT,
			material_type TEXT,
			quantity REAL,
			unit TEXT,
			departure_location TEXT,
			arrival_location TEXT,
			amount REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_lines_document
			ON invoice_lines(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_lines_material
			ON invoice_lines(material_type)`,
	}
	return db.execMigrations(statements)
}

// execMigrations выполняет миграции, игнорируя ошибки повторного
// добавления колонок и индексов на старых базах
func (db *DB) execMigrations(statements []string) error {
	for _, statement := range statements {
		if _, err := db.conn.Exec(statement); err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "duplicate column") ||
				strings.Contains(errStr, "already exists") {
				continue
			}
			return fmt.Errorf("migration failed: %s, error: %w", statement, err)
		}
	}
	return nil
}
