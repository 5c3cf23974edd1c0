package client

import (
	"crypto/rand"
	"encoding/base64"
)

const clientSecretRandomBytes = 32

func randomClientSecret() (string, error) {
	buf := make([]byte, clientSecretRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
