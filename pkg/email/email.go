// Package email normalizes contact addresses before they are stored or
// compared.
package email

import (
	"strings"
)

// Normalize trims surrounding whitespace and lower-cases the address so that
// "A@X.com " and "a@x.com" refer to the same contact.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// LooksLikeEmail reports whether address has a non-empty local part and a
// dotted domain. Phone numbers and other handles return false.
func LooksLikeEmail(address string) bool {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return false
	}
	domain := address[at+1:]
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// Domain returns the part after the last '@', or "" when there is none.
func Domain(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return ""
	}
	return address[at+1:]
}
