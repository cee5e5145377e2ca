// Package flag нормализует и сравнивает флаги.
package flag

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxLength - максимальная длина флага в байтах
const MaxLength = 255

// Normalize обрезает пробельные символы по краям и, если флаг нечувствителен
// к регистру, приводит его к нижнему регистру.
func Normalize(raw string, caseSensitive bool) string {
	value := strings.TrimSpace(raw)
	if caseSensitive {
		return value
	}
	// Caser не потокобезопасен, создаем на каждый вызов
	return cases.Lower(language.Und).String(value)
}

// Match сравнивает присланный флаг с эталоном за время, не зависящее от совпавшего префикса.
// Сравниваются хеши, поэтому длина флага тоже не утекает.
func Match(submitted, expected string, caseSensitive bool) bool {
	a := blake2b.Sum256([]byte(Normalize(submitted, caseSensitive)))
	b := blake2b.Sum256([]byte(Normalize(expected, caseSensitive)))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
