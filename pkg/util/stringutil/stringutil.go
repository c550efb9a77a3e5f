package stringutil

import "strings"

// UpperCaseFirstChar ensures the message first char is uppercased.
func UpperCaseFirstChar(msg string) string {
	if msg == "" {
		return ""
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
