package utils

import (
	"regexp"
	"strings"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

// MaskDSN hides the password segment of a connection URL such as a Redis URL.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskToken keeps the first four characters of a bearer token for correlation
// in logs and hides the rest.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "***"
}

// MaskSecret hides a secret entirely, only revealing whether it is set.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
