package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const exportScope = "export:registrations"

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// ExportToken signs links to the registrations export.
func ExportToken(secret string) string {
	return HMACSHA256Hex(secret, exportScope)
}

func ValidExportToken(secret, token string) bool {
	if token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(ExportToken(secret)))
}
