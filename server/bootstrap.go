package server

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/greenwood-edu/lostfound-auth/users"
)

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Username    string `yaml:"username"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
	Role        string `yaml:"role"`
}

// SeedUsers loads dev accounts from a YAML file into the repository.
// Accounts that already exist are left alone, so the seed file can stay in
// place across restarts.
func SeedUsers(ctx context.Context, repo users.Repo, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "[SeedUsers] read")
	}

	var seed seedFile
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return errors.Wrap(err, "[SeedUsers] parse")
	}

	for _, su := range seed.Users {
		if _, err := repo.GetByUsername(ctx, su.Username); err == nil {
			continue
		}

		role, err := users.ParseRole(su.Role)
		if err != nil {
			return errors.Wrapf(err, "[SeedUsers] user %q", su.Username)
		}
		hash, err := users.HashPassword(su.Password)
		if err != nil {
			return errors.Wrapf(err, "[SeedUsers] user %q", su.Username)
		}

		displayName := su.DisplayName
		if displayName == "" {
			displayName = su.Username
		}
		if err := repo.Upsert(ctx, &users.User{
			Username:     su.Username,
			Email:        su.Email,
			DisplayName:  displayName,
			PasswordHash: hash,
			Role:         role,
			CreatedAt:    time.Now(),
		}); err != nil {
			return errors.Wrapf(err, "[SeedUsers] user %q", su.Username)
		}
		log.Info().Str("username", su.Username).Str("role", su.Role).Msg("seeded user")
	}
	return nil
}
