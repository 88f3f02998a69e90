// Package auth holds Polymarket CLOB API credentials.
//
// The CLOB user feed and L2-authenticated REST endpoints take an API key
// triple (key, secret, passphrase) issued by the exchange. The values are
// opaque here: they are carried to the wire verbatim, never derived or
// signed locally.
package auth

import (
	"errors"
	"fmt"
	"os"
)

// Environment variables read by FromEnv.
const (
	EnvAPIKey     = "POLY_API_KEY"
	EnvAPISecret  = "POLY_API_SECRET"
	EnvPassphrase = "POLY_API_PASSPHRASE"
)

// ErrMissingCredentials is returned when any part of the triple is empty.
var ErrMissingCredentials = errors.New("missing api credentials")

// Credentials is one CLOB API key triple.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// FromEnv loads credentials from POLY_API_KEY, POLY_API_SECRET, and
// POLY_API_PASSPHRASE.
func FromEnv() (Credentials, error) {
	creds := Credentials{
		Key:        os.Getenv(EnvAPIKey),
		Secret:     os.Getenv(EnvAPISecret),
		Passphrase: os.Getenv(EnvPassphrase),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("credentials from environment: %w", err)
	}
	return creds, nil
}

// Validate checks that all three parts are present.
func (c Credentials) Validate() error {
	if c.Key == "" || c.Secret == "" || c.Passphrase == "" {
		return ErrMissingCredentials
	}
	return nil
}

// String redacts everything but a short key prefix, so credentials can
// appear in logs without leaking.
func (c Credentials) String() string {
	key := c.Key
	if len(key) > 8 {
		key = key[:8] + "..."
	}
	return fmt.Sprintf("Credentials{Key: %s, Secret: [redacted], Passphrase: [redacted]}", key)
}
