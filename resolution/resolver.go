package resolution

import (
	"sort"
	"strings"
)

// Resolve разрешает сырое значение в каноническую форму.
//
// Порядок разрешения:
//  1. Точное совпадение — значение присутствует как ключ в exact.
//  2. Префиксное совпадение — значение начинается с ключа из prefix,
//     побеждает самый длинный префикс.
//  3. Нет совпадения — значение возвращается без изменений.
//
// Пустая строка проходит насквозь. Путь чтения не мутирует состояние.
func Resolve(value string, exact map[string]string, prefix map[string]string) string {
	if value == "" {
		return value
	}

	if canonical, ok := exact[value]; ok {
		return canonical
	}

	// Самый длинный подходящий префикс выигрывает. Два различных префикса
	// одинаковой длины не могут одновременно быть префиксами одного значения,
	// поэтому результат детерминирован без дополнительного tie-break.
	bestLen := -1
	resolved := value
	for p, canonical := range prefix {
		if len(p) > bestLen && strings.HasPrefix(value, p) {
			bestLen = len(p)
			resolved = canonical
		}
	}
	return resolved
}

// Resolver связывает exact и prefix маппинги одной категории и
// предвычисляет порядок префиксов для массового разрешения
type Resolver struct {
	exact          map[string]string
	prefix         map[string]string
	sortedPrefixes []string // по убыванию длины, при равной длине лексикографически
}

// NewResolver создает резолвер над снимком approved-маппингов
func NewResolver(exact, prefix map[string]string) *Resolver {
	sortedPrefixes := make([]string, 0, len(prefix))
	for p := range prefix {
		sortedPrefixes = append(sortedPrefixes, p)
	}
	sort.Slice(sortedPrefixes, func(i, j int) bool {
		if len(sortedPrefixes[i]) != len(sortedPrefixes[j]) {
			return len(sortedPrefixes[i]) > len(sortedPrefixes[j])
		}
		return sortedPrefixes[i] < sortedPrefixes[j]
	})

	return &Resolver{
		exact:          exact,
		prefix:         prefix,
		sortedPrefixes: sortedPrefixes,
	}
}

// Resolve разрешает одно значение
func (r *Resolver) Resolve(value string) string {
	if value == "" {
		return value
	}
	if canonical, ok := r.exact[value]; ok {
		return canonical
	}
	for _, p := range r.sortedPrefixes {
		if strings.HasPrefix(value, p) {
			return r.prefix[p]
		}
	}
	return value
}

// ResolveAll разрешает срез значений, сохраняя порядок и длину.
// Колонночный вариант Resolve для аналитики.
func (r *Resolver) ResolveAll(values []string) []string {
	resolved := make([]string, len(values))
	for i, value := range values {
		resolved[i] = r.Resolve(value)
	}
	return resolved
}
