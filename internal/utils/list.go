package utils

import "strings"

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// NormalizeList lowercases and trims entries, dropping empty ones.
func NormalizeList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
