package utils

import (
	"strings"
	"unicode/utf8"
)

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func ExtractDomainFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}

	// "Name <user@domain>"
	if start, end := strings.LastIndex(email, "<"), strings.LastIndex(email, ">"); start >= 0 && end > start {
		email = email[start+1 : end]
	}

	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
