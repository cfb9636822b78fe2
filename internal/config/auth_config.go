package config

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig interface {
	GetSigningSecret() []byte
	GetAccessTokenExpiry() time.Duration
	GetRefreshWindow() time.Duration
	GetRequestTimeout() time.Duration
	GetBcryptCost() int
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetSigningSecret returns the HMAC key used to sign access tokens.
// The default is only acceptable for development.
func (Auth) GetSigningSecret() []byte {
	return []byte(GetEnv("SIGNING_SECRET", "dev-signing-secret-do-not-deploy"))
}

func (Auth) GetAccessTokenExpiry() time.Duration {
	return getEnvDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

// GetRefreshWindow returns how long after its original issue time a token
// may still be exchanged for a fresh one.
func (Auth) GetRefreshWindow() time.Duration {
	return getEnvDuration("REFRESH_WINDOW", 7*24*time.Hour)
}

// GetRequestTimeout bounds every outbound network call made by the client SDK.
func (Auth) GetRequestTimeout() time.Duration {
	return getEnvDuration("REQUEST_TIMEOUT", 15*time.Second)
}

func (Auth) GetBcryptCost() int {
	return bcrypt.DefaultCost
}

func getEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	if v := GetEnv(envVar, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
