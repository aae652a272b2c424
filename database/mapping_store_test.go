package database

import (
	"reflect"
	"testing"

	"rationalize/resolution"
)

// newTestDB создает чистую in-memory базу с миграциями
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("не удалось создать тестовую базу: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedMappings базовый набор маппингов локаций для тестов чтения
func seedMappings(t *testing.T, db *DB) {
	t.Helper()
	entries := []struct {
		raw, canonical, mode, status string
	}{
		{"SORGUES", "Sorgues", resolution.MatchModeExact, resolution.StatusApproved},
		{"Sorgues (84)", "Sorgues", resolution.MatchModeExact, resolution.StatusApproved},
		{"Kallo", "Kallo", resolution.MatchModePrefix, resolution.StatusApproved},
		{"AVIGNON", "Avignon", resolution.MatchModeExact, resolution.StatusPendingReview},
		{"LYON", "Lyon", resolution.MatchModeExact, resolution.StatusRejected},
	}
	for _, e := range entries {
		_, err := db.conn.Exec(`
			INSERT INTO entity_mappings
				(entity_category, raw_value, canonical_value, match_mode, status, source, confidence)
			VALUES (?, ?, ?, ?, ?, 'manual', 1.0)`,
			resolution.CategoryLocation, e.raw, e.canonical, e.mode, e.status)
		if err != nil {
			t.Fatalf("не удалось заполнить маппинги: %v", err)
		}
	}
}

func TestExactMappingsApprovedOnly(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	exact, err := db.ExactMappings(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	want := map[string]string{
		"SORGUES":      "Sorgues",
		"Sorgues (84)": "Sorgues",
	}
	if !reflect.DeepEqual(exact, want) {
		t.Fatalf("exact = %v, ожидалось %v", exact, want)
	}
}

func TestPrefixMappingsSeparatedFromExact(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	prefix, err := db.PrefixMappings(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(prefix, map[string]string{"Kallo": "Kallo"}) {
		t.Fatalf("prefix = %v", prefix)
	}
}

func TestMappingsCategoryIsolation(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	exact, err := db.ExactMappings(resolution.CategoryMaterial)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(exact) != 0 {
		t.Fatalf("маппинги другой категории не должны просачиваться: %v", exact)
	}
}

func TestReverseMappings(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	reverse, err := db.ReverseMappings(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if !reflect.DeepEqual(reverse["Sorgues"], []string{"SORGUES", "Sorgues (84)"}) {
		t.Errorf("reverse[Sorgues] = %v", reverse["Sorgues"])
	}
	if _, ok := reverse["Avignon"]; ok {
		t.Error("pending-записи не участвуют в обратных маппингах")
	}
}

func TestExpandCanonicalAlwaysIncludesCanonical(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	values, err := db.ExpandCanonical(resolution.CategoryLocation, "Sorgues")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := []string{"Sorgues", "SORGUES", "Sorgues (84)"}
	if !reflect.DeepEqual(values, want) {
		t.Fatalf("expand = %v, ожидалось %v", values, want)
	}

	// Каноническое значение без единого маппинга расширяется до самого себя
	values, err = db.ExpandCanonical(resolution.CategoryLocation, "Marseille")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(values, []string{"Marseille"}) {
		t.Fatalf("expand = %v", values)
	}
}

func TestPendingReviewsOrderedByConfidence(t *testing.T) {
	db := newTestDB(t)

	for _, e := range []struct {
		raw        string
		confidence float64
	}{
		{"low", 0.55},
		{"high", 0.85},
		{"mid", 0.70},
	} {
		err := db.InsertPendingReview(resolution.MappingEntry{
			Category:       resolution.CategorySupplier,
			RawValue:       e.raw,
			CanonicalValue: "canon",
			Confidence:     e.confidence,
		})
		if err != nil {
			t.Fatalf("не удалось вставить pending-запись: %v", err)
		}
	}

	entries, err := db.PendingReviews(resolution.CategorySupplier)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ожидалось 3 записи, получено %d", len(entries))
	}

	got := []string{entries[0].RawValue, entries[1].RawValue, entries[2].RawValue}
	if !reflect.DeepEqual(got, []string{"high", "mid", "low"}) {
		t.Fatalf("порядок = %v", got)
	}
	if entries[0].Status != resolution.StatusPendingReview {
		t.Errorf("status = %q", entries[0].Status)
	}
	if entries[0].Source != resolution.SourceAuto {
		t.Errorf("source по умолчанию = %q, ожидалось auto", entries[0].Source)
	}
}

func TestApprovedRawValuesAndHasMapping(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	approved, err := db.ApprovedRawValues(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !approved["SORGUES"] || !approved["Kallo"] {
		t.Errorf("approved = %v", approved)
	}
	if approved["AVIGNON"] {
		t.Error("pending-запись не является approved")
	}

	// HasMapping видит записи любого статуса
	for _, raw := range []string{"SORGUES", "AVIGNON", "LYON"} {
		exists, err := db.HasMapping(resolution.CategoryLocation, raw)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if !exists {
			t.Errorf("HasMapping(%q) = false", raw)
		}
	}
	exists, err := db.HasMapping(resolution.CategoryLocation, "TOULOUSE")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if exists {
		t.Error("HasMapping для неизвестного значения должно быть false")
	}
}

func TestUniqueCategoryRawValueConstraint(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	// Дубликат пары (category, raw_value) отклоняется хранилищем
	err := db.InsertPendingReview(resolution.MappingEntry{
		Category:       resolution.CategoryLocation,
		RawValue:       "SORGUES",
		CanonicalValue: "Другое",
	})
	if err == nil {
		t.Fatal("ожидался отказ уникального ограничения")
	}

	// Та же пара в другой категории допустима
	err = db.InsertPendingReview(resolution.MappingEntry{
		Category:       resolution.CategoryMaterial,
		RawValue:       "SORGUES",
		CanonicalValue: "Sorgues",
	})
	if err != nil {
		t.Fatalf("пара в другой категории должна вставляться: %v", err)
	}
}

func TestDistinctValuesFromDocuments(t *testing.T) {
	db := newTestDB(t)

	supplierID, err := db.InsertSupplier("ChemCorp SA")
	if err != nil {
		t.Fatalf("не удалось создать поставщика: %v", err)
	}
	docID, err := db.InsertDocument(Document{
		Reference:  "FAC-2025-0001",
		ClientName: "Eurenco",
		SupplierID: supplierID,
	})
	if err != nil {
		t.Fatalf("не удалось создать документ: %v", err)
	}
	for _, line := range []InvoiceLine{
		{DocumentID: docID, MaterialType: "cellulose", DepartureLocation: "Sorgues", ArrivalLocation: "Kallo"},
		{DocumentID: docID, MaterialType: " cellulose ", DepartureLocation: "SORGUES", ArrivalLocation: "Kallo"},
	} {
		if _, err := db.InsertInvoiceLine(line); err != nil {
			t.Fatalf("не удалось создать строку: %v", err)
		}
	}

	locations, err := db.DistinctValues(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	// Departure и arrival объединяются, дубликаты и пробелы убираются
	if !reflect.DeepEqual(locations, []string{"Kallo", "SORGUES", "Sorgues"}) {
		t.Fatalf("locations = %v", locations)
	}

	materials, err := db.DistinctValues(resolution.CategoryMaterial)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(materials, []string{"cellulose"}) {
		t.Fatalf("materials = %v", materials)
	}

	suppliers, err := db.DistinctValues(resolution.CategorySupplier)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(suppliers, []string{"ChemCorp SA"}) {
		t.Fatalf("suppliers = %v", suppliers)
	}

	companies, err := db.DistinctValues(resolution.CategoryCompany)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(companies, []string{"Eurenco"}) {
		t.Fatalf("companies = %v", companies)
	}
}

func TestDistinctCanonicalValuesAppliesMappings(t *testing.T) {
	db := newTestDB(t)
	seedMappings(t, db)

	docID, err := db.InsertDocument(Document{Reference: "FAC-1", ClientName: "Eurenco"})
	if err != nil {
		t.Fatalf("не удалось создать документ: %v", err)
	}
	for _, loc := range []string{"SORGUES", "Sorgues (84)", "Marseille"} {
		_, err := db.InsertInvoiceLine(InvoiceLine{DocumentID: docID, DepartureLocation: loc})
		if err != nil {
			t.Fatalf("не удалось создать строку: %v", err)
		}
	}

	values, err := db.DistinctCanonicalValues(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(values, []string{"Marseille", "Sorgues"}) {
		t.Fatalf("values = %v", values)
	}
}
