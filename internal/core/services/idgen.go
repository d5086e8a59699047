package services

import (
	"crypto/rand"
	"fmt"
	"time"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateID produces "doc_" + 12 random alphanumeric characters + "_"
// + a millisecond timestamp. Two calls within the same millisecond
// still differ because of the random suffix.
func GenerateID() (string, error) {
	suffix, err := randomAlphanumeric(12)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("doc_%s_%d", suffix, time.Now().UnixMilli()), nil
}

func randomAlphanumeric(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating random id suffix: %w", err)
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out), nil
}
