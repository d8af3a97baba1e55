package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// receiverToken returns the configured bearer token, generating one when
// none is set
func receiverToken(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "st_" + hex.EncodeToString(bytes), nil
}
