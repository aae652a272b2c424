package resolution

import (
	"math"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldKey приводит строку к форме для сравнения: убирает регистр и
// диакритику, чтобы "Mâcon" и "MACON" давали одинаковый ключ
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return cases.Fold().String(folded)
}

// Ratio вычисляет схожесть двух строк по шкале 0..100 на основе
// расстояния Левенштейна, без учета регистра и диакритики.
// 100 — строки эквивалентны после фолдинга, 0 — ничего общего.
func Ratio(a, b string) int {
	fa := foldKey(a)
	fb := foldKey(b)
	if fa == fb {
		return 100
	}

	maxLen := utf8.RuneCountInString(fa)
	if l := utf8.RuneCountInString(fb); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100
	}

	distance := levenshteinDistance(fa, fb)
	return int(math.Round((1.0 - float64(distance)/float64(maxLen)) * 100.0))
}

// levenshteinDistance вычисляет расстояние Левенштейна между строками
// на уровне рун
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	len1 := len(r1)
	len2 := len(r2)

	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	prev := make([]int, len2+1)
	curr := make([]int, len2+1)

	for j := 0; j <= len2; j++ {
		prev[j] = j
	}

	for i := 1; i <= len1; i++ {
		curr[0] = i
		for j := 1; j <= len2; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}

			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			substitution := prev[j-1] + cost

			minVal := deletion
			if insertion < minVal {
				minVal = insertion
			}
			if substitution < minVal {
				minVal = substitution
			}
			curr[j] = minVal
		}
		prev, curr = curr, prev
	}

	return prev[len2]
}
