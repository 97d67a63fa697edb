// Package textnorm folds Vietnamese text for accent-insensitive search.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold: NFD 分解 → 結合記号除去 → đ/Đ→d → 記号除去 → 小文字化 → 空白の正規化
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.Map(func(r rune) rune {
		switch {
		case r == 'đ' || r == 'Đ':
			return 'd'
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			// 句読点・記号は落とす
			return -1
		}
	}, out)
	return strings.Join(strings.Fields(out), " ")
}

// Key: 複数フィールドを連結した検索キー
func Key(parts ...string) string {
	keep := parts[:0:0]
	for _, p := range parts {
		if f := Fold(p); f != "" {
			keep = append(keep, f)
		}
	}
	return strings.Join(keep, " ")
}

// Match: query の各語がすべて target に含まれるか
func Match(target, query string) bool {
	q := Fold(query)
	if q == "" {
		return true
	}
	t := Fold(target)
	for _, w := range strings.Fields(q) {
		if !strings.Contains(t, w) {
			return false
		}
	}
	return true
}
