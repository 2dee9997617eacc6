package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Диакритика, которую снимаем при сравнении с ключевыми словами.
var foldTable = map[rune]rune{
	'á': 'a',
	'é': 'e',
	'í': 'i',
	'ó': 'o',
	'ú': 'u',
	'ü': 'u',
	'ñ': 'n',
	'ç': 'c',
}

func foldRune(r rune) rune {
	if f, ok := foldTable[r]; ok {
		return f
	}
	return r
}

// FoldText переводит текст в нижний регистр и снимает диакритику из foldTable.
// NFC нужен для текста с комбинируемыми знаками (e + U+0301).
func FoldText(s string) string {
	// Caser хранит состояние, поэтому собираем цепочку на каждый вызов
	t := transform.Chain(norm.NFC, cases.Lower(language.Spanish), runes.Map(foldRune))
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.Map(foldRune, strings.ToLower(s))
	}
	return out
}

// CleanText заменяет NBSP на пробел, схлопывает пробелы и обрезает края.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00A0", " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Locality собирает адрес из текста ссылки объявления:
// убирает переводы строк, берёт не больше двух частей до запятых и склеивает их.
func Locality(anchorText string) string {
	text := strings.ReplaceAll(anchorText, "\n", "")
	parts := strings.Split(text, ",")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

// KeywordSet: упорядоченный набор нормализованных ключевых слов без повторов.
// После создания не меняется, поэтому безопасен для совместного использования.
type KeywordSet struct {
	words []string
}

func NewKeywordSet(words []string) *KeywordSet {
	seen := make(map[string]struct{}, len(words))
	set := &KeywordSet{}
	for _, w := range words {
		w = strings.TrimSpace(FoldText(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		set.words = append(set.words, w)
	}
	return set
}

func (k *KeywordSet) Len() int {
	if k == nil {
		return 0
	}
	return len(k.words)
}

func (k *KeywordSet) Words() []string {
	if k == nil {
		return nil
	}
	return append([]string(nil), k.words...)
}

// Match ищет первое ключевое слово, входящее в text как подстрока.
// text должен быть уже нормализован через FoldText.
func (k *KeywordSet) Match(text string) (string, bool) {
	if k == nil {
		return "", false
	}
	for _, w := range k.words {
		if strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}
