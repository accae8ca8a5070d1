package utils

import "time"

// GetOrDefault returns the value if the pointer is not nil, otherwise returns the default value
func GetOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr == nil {
		return defaultVal
	}
	return *ptr
}

func ToPtr[T any](v T) *T {
	return &v
}

func Now() time.Time {
	return time.Now().UTC()
}

func NowPtr() *time.Time {
	return ToPtr(Now())
}
