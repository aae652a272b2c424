package resolution

import (
	"regexp"
	"strings"
)

// Нормализаторы — чистые детерминированные функции построения ключа
// сравнения для сырого значения. Никогда не возвращают ошибку:
// некорректный ввод деградирует до строки в нижнем регистре.

// legalSuffixPattern хвостовые юридические формы в названиях поставщиков,
// включая варианты с точками
var legalSuffixPattern = regexp.MustCompile(
	`(?i)\b(SA|SARL|SAS|S\.A\.S\.?|S\.A\.R\.L\.?|S\.A\.?|EURL|SCI|SNC|` +
		`GmbH|AG|Ltd\.?|Inc\.?|LLC|PLC|Co\.?|Corp\.?|BV|NV)\s*$`)

// leadingQuantityPattern ведущий паттерн "количество + единица измерения",
// например "60 bobines de ..." или "12,5 kg"
var leadingQuantityPattern = regexp.MustCompile(
	`(?i)^\d+[\s,.]?\d*\s*` +
		`(bobines?|rouleaux?|futs?|palettes?|tonnes?|kg|litres?|` +
		`sacs?|pièces?|lots?|bidons?|containers?|m[23]?)\b\s*(de\s+|d['’])?`)

// NormalizeSupplier строит ключ сравнения для названия поставщика:
// нижний регистр, без хвостовой юридической формы, без остаточной
// пунктуации
func NormalizeSupplier(name string) string {
	result := strings.ToLower(strings.TrimSpace(name))
	result = strings.TrimSpace(legalSuffixPattern.ReplaceAllString(result, ""))
	result = strings.TrimRight(result, ".,- ")
	return result
}

// NormalizeMaterial строит ключ сравнения для типа материала.
// Операционные детали после " - " отбрасываются ("- Attente livraison"),
// затем снимается ведущее количество с единицей измерения
// ("60 bobines de cellulose" -> "cellulose"), остаток в нижний регистр.
func NormalizeMaterial(name string) string {
	if idx := strings.Index(name, " - "); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	name = strings.TrimSpace(leadingQuantityPattern.ReplaceAllString(name, ""))
	return strings.ToLower(name)
}
