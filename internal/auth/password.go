package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything past the first 72 bytes.
const maxPasswordBytes = 72

var (
	errEmptyPassword   = errors.New("password must not be empty")
	errPasswordTooLong = fmt.Errorf("password exceeds %d bytes", maxPasswordBytes)
)

// hashCost clamps cost into the range bcrypt accepts. Zero selects
// bcrypt.DefaultCost.
func hashCost(cost int) int {
	switch {
	case cost == 0:
		return bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		return bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	}
	return cost
}

// hashAccountPassword hashes the clear-text password of a configured
// account.
func hashAccountPassword(password string, cost int) (string, error) {
	switch {
	case password == "":
		return "", errEmptyPassword
	case len(password) > maxPasswordBytes:
		return "", errPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), hashCost(cost))
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func passwordMatches(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
