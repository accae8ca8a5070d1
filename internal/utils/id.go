package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func GenerateNanoIDWithPrefix(prefix string, size int) string {
	id, err := gonanoid.Generate(idAlphabet, size)
	if err != nil {
		panic(err)
	}
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
