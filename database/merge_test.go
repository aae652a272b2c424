package database

import (
	"reflect"
	"strings"
	"testing"

	"rationalize/resolution"
)

func TestMergeCreatesMappingsAndAudit(t *testing.T) {
	db := newTestDB(t)

	audit, err := db.Merge(resolution.MergeRequest{
		Category:    resolution.CategorySupplier,
		Canonical:   "ChemCorp SA",
		RawValues:   []string{"ChemCorp SAS", "chemcorp"},
		PerformedBy: "admin",
		Notes:       "дубль юридической формы",
	})
	if err != nil {
		t.Fatalf("объединение не удалось: %v", err)
	}
	if audit.ID == 0 {
		t.Fatal("ожидался ненулевой id аудита")
	}
	if audit.Action != resolution.ActionMerge {
		t.Errorf("action = %q", audit.Action)
	}

	exact, err := db.ExactMappings(resolution.CategorySupplier)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := map[string]string{
		"ChemCorp SAS": "ChemCorp SA",
		"chemcorp":     "ChemCorp SA",
	}
	if !reflect.DeepEqual(exact, want) {
		t.Fatalf("exact = %v, ожидалось %v", exact, want)
	}

	// Дефолты: exact, manual, confidence 1.0, статус approved
	entries, err := db.Mappings(resolution.CategorySupplier)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	for _, entry := range entries {
		if entry.MatchMode != resolution.MatchModeExact {
			t.Errorf("match_mode = %q", entry.MatchMode)
		}
		if entry.Source != resolution.SourceManual {
			t.Errorf("source = %q", entry.Source)
		}
		if entry.Confidence != 1.0 {
			t.Errorf("confidence = %v", entry.Confidence)
		}
		if entry.Status != resolution.StatusApproved {
			t.Errorf("status = %q", entry.Status)
		}
	}

	stored, err := db.GetAuditEntry(audit.ID)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if stored == nil {
		t.Fatal("запись аудита не найдена")
	}
	if !reflect.DeepEqual(stored.RawValues, []string{"ChemCorp SAS", "chemcorp"}) {
		t.Errorf("raw_values = %v", stored.RawValues)
	}
	if stored.Reverted {
		t.Error("новая запись не должна быть откачена")
	}
}

func TestMergeValidation(t *testing.T) {
	db := newTestDB(t)

	cases := []resolution.MergeRequest{
		{Category: "planet", Canonical: "X", RawValues: []string{"y"}},
		{Category: resolution.CategorySupplier, Canonical: "", RawValues: []string{"y"}},
		{Category: resolution.CategorySupplier, Canonical: "X", RawValues: nil},
	}
	for i, req := range cases {
		if _, err := db.Merge(req); err == nil {
			t.Errorf("случай %d: ожидалась ошибка валидации", i)
		}
	}
}

func TestMergeUpsertsExistingMapping(t *testing.T) {
	db := newTestDB(t)

	// Pending-запись от оркестратора
	err := db.InsertPendingReview(resolution.MappingEntry{
		Category:       resolution.CategoryLocation,
		RawValue:       "SORGUES",
		CanonicalValue: "Sorgues?",
		Confidence:     0.6,
	})
	if err != nil {
		t.Fatalf("не удалось вставить pending-запись: %v", err)
	}

	// Ручное объединение перезаписывает ее на месте и одобряет
	_, err = db.Merge(resolution.MergeRequest{
		Category:    resolution.CategoryLocation,
		Canonical:   "Sorgues",
		RawValues:   []string{"SORGUES"},
		PerformedBy: "admin",
	})
	if err != nil {
		t.Fatalf("объединение не удалось: %v", err)
	}

	entries, err := db.Mappings(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("повторное объединение не должно плодить дубликаты: %d записей", len(entries))
	}
	entry := entries[0]
	if entry.CanonicalValue != "Sorgues" {
		t.Errorf("canonical = %q", entry.CanonicalValue)
	}
	if entry.Status != resolution.StatusApproved {
		t.Errorf("status = %q, ожидалось approved", entry.Status)
	}
	if entry.Confidence != 1.0 {
		t.Errorf("confidence = %v", entry.Confidence)
	}
}

func TestRevertRoundTrip(t *testing.T) {
	db := newTestDB(t)

	audit, err := db.Merge(resolution.MergeRequest{
		Category:    resolution.CategoryLocation,
		Canonical:   "Sorgues",
		RawValues:   []string{"SORGUES", "Sorgues (84)"},
		PerformedBy: "admin",
	})
	if err != nil {
		t.Fatalf("объединение не удалось: %v", err)
	}

	ok, err := db.Revert(audit.ID, "admin")
	if err != nil {
		t.Fatalf("откат не удался: %v", err)
	}
	if !ok {
		t.Fatal("откат должен был пройти")
	}

	exact, err := db.ExactMappings(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(exact) != 0 {
		t.Fatalf("маппинги должны быть удалены: %v", exact)
	}

	stored, err := db.GetAuditEntry(audit.ID)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !stored.Reverted {
		t.Error("запись аудита должна быть помечена откаченной")
	}
	if stored.RevertedAt == nil {
		t.Error("reverted_at должен быть установлен")
	}
	if !strings.Contains(stored.Notes, "Reverted by admin") {
		t.Errorf("notes = %q", stored.Notes)
	}
}

func TestRevertTouchesOnlyOwnMappings(t *testing.T) {
	db := newTestDB(t)

	first, err := db.Merge(resolution.MergeRequest{
		Category:  resolution.CategoryLocation,
		Canonical: "Sorgues",
		RawValues: []string{"SORGUES"},
	})
	if err != nil {
		t.Fatalf("объединение не удалось: %v", err)
	}
	_, err = db.Merge(resolution.MergeRequest{
		Category:  resolution.CategoryLocation,
		Canonical: "Sorgues",
		RawValues: []string{"Sorgues (84)"},
	})
	if err != nil {
		t.Fatalf("объединение не удалось: %v", err)
	}

	if ok, err := db.Revert(first.ID, "admin"); err != nil || !ok {
		t.Fatalf("откат не удался: ok=%v err=%v", ok, err)
	}

	exact, err := db.ExactMappings(resolution.CategoryLocation)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	// Второе объединение с той же канонической формой не затронуто
	if !reflect.DeepEqual(exact, map[string]string{"Sorgues (84)": "Sorgues"}) {
		t.Fatalf("exact = %v", exact)
	}
}

func TestRevertFailsClosed(t *testing.T) {
	db := newTestDB(t)

	// Неизвестный id: (false, nil) без побочных эффектов
	ok, err := db.Revert(12345, "admin")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if ok {
		t.Fatal("откат несуществующей записи должен вернуть false")
	}

	audit, err := db.Merge(resolution.MergeRequest{
		Category:  resolution.CategoryLocation,
		Canonical: "Sorgues",
		RawValues: []string{"SORGUES"},
	})
	if err != nil {
		t.Fatalf("объединение не удалось: %v", err)
	}
	if ok, _ := db.Revert(audit.ID, "admin"); !ok {
		t.Fatal("первый откат должен пройти")
	}

	before, err := db.GetAuditEntry(audit.ID)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Повторный откат: false, запись аудита не меняется
	ok, err = db.Revert(audit.ID, "someone_else")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if ok {
		t.Fatal("повторный откат должен вернуть false")
	}

	after, err := db.GetAuditEntry(audit.ID)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !after.RevertedAt.Equal(*before.RevertedAt) {
		t.Error("reverted_at не должен меняться при повторном откате")
	}
	if strings.Contains(after.Notes, "someone_else") {
		t.Error("notes не должны меняться при повторном откате")
	}
}

func TestMergeAfterRevertRecreatesMappings(t *testing.T) {
	db := newTestDB(t)

	audit, err := db.Merge(resolution.MergeRequest{
		Category:  resolution.CategorySupplier,
		Canonical: "ChemCorp SA",
		RawValues: []string{"ChemCorp SAS"},
	})
	if err != nil {
		t.Fatalf("объединение не удалось: %v", err)
	}
	if ok, _ := db.Revert(audit.ID, "admin"); !ok {
		t.Fatal("откат должен пройти")
	}

	if _, err := db.Merge(resolution.MergeRequest{
		Category:  resolution.CategorySupplier,
		Canonical: "ChemCorp SA",
		RawValues: []string{"ChemCorp SAS"},
	}); err != nil {
		t.Fatalf("повторное объединение после отката не удалось: %v", err)
	}

	exact, err := db.ExactMappings(resolution.CategorySupplier)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if exact["ChemCorp SAS"] != "ChemCorp SA" {
		t.Fatalf("exact = %v", exact)
	}
}

func TestListAuditEntriesNewestFirst(t *testing.T) {
	db := newTestDB(t)

	for _, canonical := range []string{"A", "B", "C"} {
		_, err := db.Merge(resolution.MergeRequest{
			Category:  resolution.CategoryMaterial,
			Canonical: canonical,
			RawValues: []string{canonical + "-raw"},
		})
		if err != nil {
			t.Fatalf("объединение не удалось: %v", err)
		}
	}

	entries, err := db.ListAuditEntries(resolution.CategoryMaterial, 2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(entries))
	}
	if entries[0].CanonicalValue != "C" || entries[1].CanonicalValue != "B" {
		t.Fatalf("порядок = %q, %q", entries[0].CanonicalValue, entries[1].CanonicalValue)
	}
}
