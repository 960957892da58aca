package internal

import "strings"

var sanitizer = strings.NewReplacer("\n", "", "\r", "", "\t", " ")

// SanitizeString strips newlines and tabs from a string before it is logged
// or echoed back in an error response, preventing log forging via
// user-controlled input.
func SanitizeString(s string) string {
	return sanitizer.Replace(s)
}

// SanitizeByteArray is SanitizeString for raw payload bytes.
func SanitizeByteArray(b []byte) string {
	return SanitizeString(string(b))
}
