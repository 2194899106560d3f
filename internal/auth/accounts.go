package auth

import (
	"errors"
	"fmt"

	"github.com/spec-kit/abteilung-service/internal/config"
	"github.com/spec-kit/abteilung-service/internal/domain"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountStore holds the configured accounts with bcrypt-hashed passwords.
type AccountStore struct {
	accounts map[string]*domain.Account
	// decoy is compared for unknown usernames so they cost as much as a
	// wrong password.
	decoy string
}

// NewAccountStore hashes the configured passwords. Usernames must be unique.
func NewAccountStore(users []config.UserConfig, bcryptCost int) (*AccountStore, error) {
	decoy, err := hashAccountPassword("unknown-account", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash decoy password: %w", err)
	}
	store := &AccountStore{accounts: make(map[string]*domain.Account, len(users)), decoy: decoy}
	for _, u := range users {
		if _, dup := store.accounts[u.Username]; dup {
			return nil, fmt.Errorf("duplicate account %s", u.Username)
		}
		hash, err := hashAccountPassword(u.Password, bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		roles := make([]domain.Role, 0, len(u.Roles))
		for _, r := range u.Roles {
			roles = append(roles, domain.Role(r))
		}
		store.accounts[u.Username] = &domain.Account{Username: u.Username, PasswordHash: hash, Roles: roles}
	}
	return store, nil
}

// Authenticate checks the password and returns the account.
func (s *AccountStore) Authenticate(username, password string) (*domain.Account, error) {
	account, ok := s.accounts[username]
	if !ok {
		passwordMatches(s.decoy, password)
		return nil, ErrInvalidCredentials
	}
	if !passwordMatches(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}
