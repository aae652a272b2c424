package resolution

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// staticSource источник значений для тестов движков
type staticSource struct {
	values map[EntityCategory][]string
	err    error
}

func (s *staticSource) DistinctValues(category EntityCategory) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.values[category], nil
}

// fakeGeocoder геокодер с фиксированными координатами
type fakeGeocoder struct {
	points map[string][2]float64
	fail   bool
	calls  int
}

func (g *fakeGeocoder) Geocode(ctx context.Context, name string) (float64, float64, bool) {
	g.calls++
	if g.fail {
		return 0, 0, false
	}
	p, ok := g.points[name]
	if !ok {
		return 0, 0, false
	}
	return p[0], p[1], true
}

func TestNormalizedEngineGroupsByKey(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryMaterial: {
			"60 bobines de cellulose - En attente",
			"59 bobines de cellulose",
			"Acide sulfurique 98%",
		},
	}}

	suggestions, err := NewMaterialEngine(source).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("ожидалось 1 предложение, получено %d: %+v", len(suggestions), suggestions)
	}

	s := suggestions[0]
	if s.Canonical != "59 bobines de cellulose" {
		t.Errorf("каноническим должно быть кратчайшее значение группы, получено %q", s.Canonical)
	}
	if !reflect.DeepEqual(s.Aliases, []string{"60 bobines de cellulose - En attente"}) {
		t.Errorf("неожиданные aliases: %v", s.Aliases)
	}
	if s.Confidence != 0.95 {
		t.Errorf("уверенность нормализационного совпадения = %v, ожидалось 0.95", s.Confidence)
	}
	if s.Source != SuggestionSourceNormalization {
		t.Errorf("источник = %q, ожидалось normalization", s.Source)
	}
}

func TestSupplierEngineStripsLegalSuffixes(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategorySupplier: {"ChemCorp SA", "ChemCorp SAS", "Papeteries du Sud"},
	}}

	suggestions, err := NewSupplierEngine(source).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("ожидалось 1 предложение, получено %d", len(suggestions))
	}
	if suggestions[0].Canonical != "ChemCorp SA" {
		t.Errorf("canonical = %q, ожидалось ChemCorp SA", suggestions[0].Canonical)
	}
	if !reflect.DeepEqual(suggestions[0].Aliases, []string{"ChemCorp SAS"}) {
		t.Errorf("aliases = %v", suggestions[0].Aliases)
	}
}

func TestNormalizedEngineFuzzyPhase(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryMaterial: {"Nitrate Ethyle Hexyl", "Nitrate Ethyl Hexyl"},
	}}

	suggestions, err := NewMaterialEngine(source).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("ожидалось 1 fuzzy-предложение, получено %d", len(suggestions))
	}

	s := suggestions[0]
	if s.Source != SuggestionSourceFuzzy {
		t.Errorf("источник = %q, ожидалось fuzzy", s.Source)
	}
	if s.Canonical != "Nitrate Ethyl Hexyl" {
		t.Errorf("canonical = %q", s.Canonical)
	}
	if s.Confidence != 0.95 {
		t.Errorf("уверенность = %v, ожидалось 0.95", s.Confidence)
	}
}

func TestNormalizedEngineConsumesEachKeyOnce(t *testing.T) {
	// Три похожих одиночных ключа: первый собирает пары со вторым и третьим,
	// пара (второй, третий) уже не рассматривается
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryMaterial: {"Materiau Alpha", "Materiau Alphb", "Materiau Alphc"},
	}}

	suggestions, err := NewMaterialEngine(source).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("ожидалось 2 предложения, получено %d: %+v", len(suggestions), suggestions)
	}
	for _, s := range suggestions {
		if s.Canonical != "Materiau Alpha" {
			t.Errorf("все пары должны исходить из первого ключа, получено %q", s.Canonical)
		}
		if len(s.Aliases) != 1 {
			t.Errorf("ожидался один alias на пару, получено %v", s.Aliases)
		}
	}
}

func TestNormalizedEngineTooFewValues(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategorySupplier: {"ChemCorp SA"},
	}}

	suggestions, err := NewSupplierEngine(source).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if suggestions != nil {
		t.Fatalf("одиночное значение не дает предложений, получено %v", suggestions)
	}
}

func TestNormalizedEnginePropagatesSourceError(t *testing.T) {
	source := &staticSource{err: errors.New("db down")}

	if _, err := NewSupplierEngine(source).Suggest(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка источника")
	}
}

func TestLocationEngineGroupsBySimilarity(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryLocation: {"SORGUES", "Sorgues", "Sorgues (84)"},
	}}

	suggestions, err := NewLocationEngine(source, nil).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("ожидалось 1 предложение, получено %d", len(suggestions))
	}

	s := suggestions[0]
	if s.Canonical != "SORGUES" {
		t.Errorf("canonical = %q", s.Canonical)
	}
	if !reflect.DeepEqual(s.Aliases, []string{"Sorgues", "Sorgues (84)"}) {
		t.Errorf("aliases = %v", s.Aliases)
	}
	if s.Confidence != 1.0 {
		t.Errorf("уверенность группы с точным фолдинг-совпадением = %v, ожидалось 1.0", s.Confidence)
	}
}

func TestLocationEngineGeocodingConfirmsWeakMatch(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryLocation: {"Sorgues", "Sorgues (84)"},
	}}
	// Обе точки — Sorgues, Воклюз
	geocoder := &fakeGeocoder{points: map[string][2]float64{
		"Sorgues":      {44.007, 4.873},
		"Sorgues (84)": {44.008, 4.874},
	}}

	suggestions, err := NewLocationEngine(source, geocoder).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("ожидалось 1 предложение, получено %d", len(suggestions))
	}

	s := suggestions[0]
	if s.Confidence != 0.95 {
		t.Errorf("подтвержденная уверенность = %v, ожидалось 0.95", s.Confidence)
	}
	if s.Source != SuggestionSourceGeocoding {
		t.Errorf("источник = %q, ожидалось geocoding", s.Source)
	}
}

func TestLocationEngineGeocodingFailureDegradesSilently(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryLocation: {"Sorgues", "Sorgues (84)"},
	}}
	geocoder := &fakeGeocoder{fail: true}

	suggestions, err := NewLocationEngine(source, geocoder).Suggest(context.Background())
	if err != nil {
		t.Fatalf("сбой геокодера не должен быть ошибкой: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("ожидалось 1 предложение, получено %d", len(suggestions))
	}
	if suggestions[0].Source != SuggestionSourceFuzzy {
		t.Errorf("при сбое геокодера остается fuzzy-результат, получено %q", suggestions[0].Source)
	}
	if suggestions[0].Confidence >= 0.95 {
		t.Errorf("уверенность не должна подняться: %v", suggestions[0].Confidence)
	}
}

func TestLocationEngineGeocodingDistantPointsNotMerged(t *testing.T) {
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryLocation: {"Sorgues", "Sorgues (84)"},
	}}
	// Точки в сотнях километров друг от друга
	geocoder := &fakeGeocoder{points: map[string][2]float64{
		"Sorgues":      {44.007, 4.873},
		"Sorgues (84)": {48.857, 2.352},
	}}

	suggestions, err := NewLocationEngine(source, geocoder).Suggest(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if suggestions[0].Source != SuggestionSourceGeocoding && suggestions[0].Confidence >= 0.95 {
		t.Errorf("далекие точки не должны подтверждаться: %+v", suggestions[0])
	}
	if suggestions[0].Source == SuggestionSourceGeocoding {
		t.Errorf("источник не должен смениться на geocoding")
	}
}

func TestLocationEngineSkipsConfidentMatches(t *testing.T) {
	// Уверенность 1.0 вне окна геокодирования: геокодер не должен вызываться
	source := &staticSource{values: map[EntityCategory][]string{
		CategoryLocation: {"SORGUES", "Sorgues"},
	}}
	geocoder := &fakeGeocoder{points: map[string][2]float64{}}

	if _, err := NewLocationEngine(source, geocoder).Suggest(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if geocoder.calls != 0 {
		t.Errorf("геокодер вызван %d раз для уверенного совпадения", geocoder.calls)
	}
}

func TestHaversineKm(t *testing.T) {
	// Париж — Лион, около 392 км
	d := haversineKm(48.8566, 2.3522, 45.7640, 4.8357)
	if d < 380 || d > 405 {
		t.Errorf("haversineKm(Париж, Лион) = %v, ожидалось ~392", d)
	}

	if d := haversineKm(44.0, 4.8, 44.0, 4.8); d != 0 {
		t.Errorf("расстояние точки до себя = %v", d)
	}
}

func TestEnginesForCoversAllCategories(t *testing.T) {
	engines := EnginesFor(&staticSource{}, nil)

	seen := make(map[EntityCategory]bool)
	for _, engine := range engines {
		seen[engine.Category()] = true
	}
	for _, category := range AllCategories() {
		if !seen[category] {
			t.Errorf("нет движка для категории %s", category)
		}
	}
}
