package database

import (
	"fmt"
	"sort"
	"strings"

	"rationalize/resolution"
)

// Запросы различных сырых значений по категориям. Таблицы документов —
// внешний коллаборатор ядра разрешения: отсюда берутся значения для
// движков предложений и фильтров дашборда.

// categoryValueQueries запрос сырых значений для каждой категории
var categoryValueQueries = map[resolution.EntityCategory]string{
	resolution.CategoryLocation: `
		SELECT departure_location AS val FROM invoice_lines
			WHERE departure_location IS NOT NULL
		UNION
		SELECT arrival_location AS val FROM invoice_lines
			WHERE arrival_location IS NOT NULL`,
	resolution.CategoryMaterial: `
		SELECT DISTINCT material_type AS val FROM invoice_lines
			WHERE material_type IS NOT NULL`,
	resolution.CategorySupplier: `
		SELECT DISTINCT name AS val FROM suppliers
			WHERE name IS NOT NULL`,
	resolution.CategoryCompany: `
		SELECT DISTINCT client_name AS val FROM documents
			WHERE client_name IS NOT NULL`,
}

// DistinctValues возвращает отсортированные различные сырые значения
// категории. Неизвестная категория дает пустой результат, не ошибку.
// Реализует resolution.ValueSource.
func (db *DB) DistinctValues(category resolution.EntityCategory) ([]string, error) {
	query, ok := categoryValueQueries[category]
	if !ok {
		return nil, nil
	}

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct values for %s: %w", category, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(values)
	return values, nil
}

// DistinctCanonicalValues возвращает различные значения категории после
// разрешения в каноническую форму: дедуплицированный отсортированный
// список для выпадающих фильтров
func (db *DB) DistinctCanonicalValues(category resolution.EntityCategory) ([]string, error) {
	values, err := db.DistinctValues(category)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return []string{}, nil
	}

	exact, err := db.ExactMappings(category)
	if err != nil {
		return nil, err
	}
	prefix, err := db.PrefixMappings(category)
	if err != nil {
		return nil, err
	}

	resolver := resolution.NewResolver(exact, prefix)
	seen := make(map[string]bool)
	resolved := []string{}
	for _, value := range values {
		canonical := resolver.Resolve(value)
		if !seen[canonical] {
			seen[canonical] = true
			resolved = append(resolved, canonical)
		}
	}

	sort.Strings(resolved)
	return resolved, nil
}
