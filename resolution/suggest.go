package resolution

import (
	"context"
	"math"
	"sort"
)

// Источники предложений об объединении
const (
	SuggestionSourceNormalization = "normalization"
	SuggestionSourceFuzzy         = "fuzzy"
	SuggestionSourceGeocoding     = "geocoding"
)

const (
	// normalizationConfidence фиксированная уверенность для совпадения
	// нормализованных ключей
	normalizationConfidence = 0.95

	// fuzzyScoreFloor минимальный Ratio, при котором пара вообще
	// рассматривается как кандидат
	fuzzyScoreFloor = 50

	// Окно неубедительных fuzzy-совпадений, для которых имеет смысл
	// спрашивать геокодер
	geocodingWindowLow  = 0.5
	geocodingWindowHigh = 0.8

	// geocodingMaxDistanceKm максимальное расстояние между точками,
	// при котором два названия считаются одним местом
	geocodingMaxDistanceKm = 1.0

	// geocodingConfidence уверенность после подтверждения геокодером
	geocodingConfidence = 0.95
)

// Suggestion предложение объединить aliases под canonical
type Suggestion struct {
	Category   EntityCategory `json:"entity_category"`
	Canonical  string         `json:"canonical"`
	Aliases    []string       `json:"aliases"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
}

// ValueSource поставщик различных сырых значений по категории.
// Реализуется хранилищем строк документов (внешний коллаборатор).
type ValueSource interface {
	DistinctValues(category EntityCategory) ([]string, error)
}

// Geocoder опциональный коллаборатор геокодирования.
// Реализация обязана сама ограничивать время вызова и никогда не
// паниковать: любой сбой выражается как ok=false.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (lat, lon float64, ok bool)
}

// SuggestionEngine движок предложений для одной категории
type SuggestionEngine interface {
	Category() EntityCategory
	Suggest(ctx context.Context) ([]Suggestion, error)
}

// EnginesFor создает движки для всех категорий.
// geocoder может быть nil — тогда движок локаций работает только по
// fuzzy-совпадениям.
func EnginesFor(source ValueSource, geocoder Geocoder) []SuggestionEngine {
	return []SuggestionEngine{
		NewLocationEngine(source, geocoder),
		NewMaterialEngine(source),
		NewSupplierEngine(source),
		NewCompanyEngine(source),
	}
}

// NormalizedEngine движок для категорий с посимвольной нормализацией
// (материалы, поставщики, компании).
//
// Фаза 1: группировка по нормализованному ключу; группы из >1 значения —
// высокоуверенные совпадения. Каноническим выбирается кратчайшее значение
// группы: у опечаток и операционных хвостов длина больше. Эвристика
// сохранена как есть ради совместимости; кандидат на явную политику
// выбора канонической формы.
//
// Фаза 2: оставшиеся одиночные ключи сравниваются попарно по Ratio.
// Значения обрабатываются в отсортированном порядке, каждый ключ
// потребляется максимум одним предложением за проход.
type NormalizedEngine struct {
	category  EntityCategory
	source    ValueSource
	normalize func(string) string
}

// NewMaterialEngine движок предложений для материалов
func NewMaterialEngine(source ValueSource) *NormalizedEngine {
	return &NormalizedEngine{
		category:  CategoryMaterial,
		source:    source,
		normalize: NormalizeMaterial,
	}
}

// NewSupplierEngine движок предложений для поставщиков
func NewSupplierEngine(source ValueSource) *NormalizedEngine {
	return &NormalizedEngine{
		category:  CategorySupplier,
		source:    source,
		normalize: NormalizeSupplier,
	}
}

// NewCompanyEngine движок предложений для компаний-клиентов.
// Названия компаний подчиняются тем же правилам, что и поставщики.
func NewCompanyEngine(source ValueSource) *NormalizedEngine {
	return &NormalizedEngine{
		category:  CategoryCompany,
		source:    source,
		normalize: NormalizeSupplier,
	}
}

// Category возвращает категорию движка
func (e *NormalizedEngine) Category() EntityCategory {
	return e.category
}

// Suggest сканирует все различные значения категории и предлагает группы
func (e *NormalizedEngine) Suggest(ctx context.Context) ([]Suggestion, error) {
	values, err := e.source.DistinctValues(e.category)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, nil
	}
	sort.Strings(values)

	// Нормализованный ключ -> исходные значения (в отсортированном порядке)
	normGroups := make(map[string][]string)
	for _, value := range values {
		key := e.normalize(value)
		if key != "" {
			normGroups[key] = append(normGroups[key], value)
		}
	}

	keys := make([]string, 0, len(normGroups))
	for key := range normGroups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Фаза 1: совпадение нормализованных ключей
	var suggestions []Suggestion
	usedKeys := make(map[string]bool)
	for _, key := range keys {
		originals := normGroups[key]
		if len(originals) < 2 {
			continue
		}
		canonical := shortestValue(originals)
		suggestions = append(suggestions, Suggestion{
			Category:   e.category,
			Canonical:  canonical,
			Aliases:    valuesWithout(originals, canonical),
			Confidence: normalizationConfidence,
			Source:     SuggestionSourceNormalization,
		})
		usedKeys[key] = true
	}

	// Фаза 2: fuzzy-сравнение оставшихся одиночных ключей
	remaining := make([]string, 0, len(keys))
	for _, key := range keys {
		if !usedKeys[key] {
			remaining = append(remaining, key)
		}
	}

	usedFuzzy := make(map[string]bool)
	for i, key := range remaining {
		if usedFuzzy[key] {
			continue
		}
		for _, candidate := range remaining[i+1:] {
			if usedFuzzy[candidate] {
				continue
			}
			score := Ratio(key, candidate)
			if score < fuzzyScoreFloor {
				continue
			}

			canonicalOriginals := normGroups[key]
			canonical := shortestValue(canonicalOriginals)
			aliases := valuesWithout(canonicalOriginals, canonical)
			aliases = append(aliases, normGroups[candidate]...)
			if len(aliases) > 0 {
				suggestions = append(suggestions, Suggestion{
					Category:   e.category,
					Canonical:  canonical,
					Aliases:    aliases,
					Confidence: float64(score) / 100.0,
					Source:     SuggestionSourceFuzzy,
				})
			}
			usedFuzzy[candidate] = true
		}
		usedFuzzy[key] = true
	}

	return suggestions, nil
}

// LocationEngine движок для локаций: fuzzy-сравнение напрямую по сырым
// значениям, без нормализации. Неубедительные совпадения (0.5..0.8)
// опционально подтверждаются геокодером: если точки лежат ближе 1 км,
// уверенность поднимается до 0.95. Отказ геокодера молча возвращает
// fuzzy-результат.
type LocationEngine struct {
	source   ValueSource
	geocoder Geocoder
}

// NewLocationEngine движок предложений для локаций
func NewLocationEngine(source ValueSource, geocoder Geocoder) *LocationEngine {
	return &LocationEngine{source: source, geocoder: geocoder}
}

// Category возвращает категорию движка
func (e *LocationEngine) Category() EntityCategory {
	return CategoryLocation
}

// Suggest сканирует все различные локации и предлагает группы
func (e *LocationEngine) Suggest(ctx context.Context) ([]Suggestion, error) {
	values, err := e.source.DistinctValues(CategoryLocation)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, nil
	}
	sort.Strings(values)

	var suggestions []Suggestion
	used := make(map[string]bool)
	for i, value := range values {
		if used[value] {
			continue
		}

		var aliases []string
		best := 0.0
		for _, candidate := range values[i+1:] {
			if used[candidate] {
				continue
			}
			score := Ratio(value, candidate)
			if score < fuzzyScoreFloor {
				continue
			}
			if confidence := float64(score) / 100.0; confidence > best {
				best = confidence
			}
			aliases = append(aliases, candidate)
			used[candidate] = true
		}

		if len(aliases) > 0 {
			used[value] = true
			suggestions = append(suggestions, Suggestion{
				Category:   CategoryLocation,
				Canonical:  value,
				Aliases:    aliases,
				Confidence: best,
				Source:     SuggestionSourceFuzzy,
			})
		}
	}

	if e.geocoder != nil {
		e.enhanceWithGeocoding(ctx, suggestions)
	}

	return suggestions, nil
}

// enhanceWithGeocoding подтверждает неубедительные совпадения координатами
func (e *LocationEngine) enhanceWithGeocoding(ctx context.Context, suggestions []Suggestion) {
	for i := range suggestions {
		s := &suggestions[i]
		if s.Confidence < geocodingWindowLow || s.Confidence >= geocodingWindowHigh {
			continue
		}

		lat, lon, ok := e.geocoder.Geocode(ctx, s.Canonical)
		if !ok {
			continue
		}
		for _, alias := range s.Aliases {
			aliasLat, aliasLon, ok := e.geocoder.Geocode(ctx, alias)
			if !ok {
				continue
			}
			if haversineKm(lat, lon, aliasLat, aliasLon) < geocodingMaxDistanceKm {
				s.Confidence = geocodingConfidence
				s.Source = SuggestionSourceGeocoding
				break
			}
		}
	}
}

// shortestValue возвращает первое кратчайшее значение среза
func shortestValue(values []string) string {
	shortest := values[0]
	for _, value := range values[1:] {
		if len(value) < len(shortest) {
			shortest = value
		}
	}
	return shortest
}

// valuesWithout возвращает копию среза без указанного значения
func valuesWithout(values []string, exclude string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value != exclude {
			result = append(result, value)
		}
	}
	return result
}

// haversineKm расстояние по дуге большого круга между двумя точками, км
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
