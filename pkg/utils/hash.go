package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// ContentHash is the md5 hex digest used to fingerprint scraped page text.
func ContentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Truncate cuts s to at most n runes without splitting a multi-byte character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// CollapseWhitespace joins the fields of s with single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
