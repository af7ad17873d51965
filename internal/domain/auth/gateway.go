package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrGatewayKey is returned for a missing or wrong gateway key.
var ErrGatewayKey = errors.New("invalid gateway key")

// GatewayVerifier checks the shared key sent by the payment gateway against a
// bcrypt hash from configuration.
type GatewayVerifier struct {
	hash []byte
}

// NewGatewayVerifier rejects hashes bcrypt cannot parse.
func NewGatewayVerifier(hash string) (*GatewayVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("gateway key hash: %w", err)
	}
	return &GatewayVerifier{hash: []byte(hash)}, nil
}

// HashGatewayKey produces the hash stored in configuration.
func HashGatewayKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash gateway key: %w", err)
	}
	return string(h), nil
}

func (v *GatewayVerifier) Verify(key string) error {
	if v == nil || key == "" {
		return ErrGatewayKey
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrGatewayKey
	}
	return nil
}
