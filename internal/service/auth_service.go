package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/abteilung-service/internal/auth"
	"github.com/spec-kit/abteilung-service/internal/domain"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// AuthService exchanges configured credentials for access tokens.
type AuthService struct {
	accounts *auth.AccountStore
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(accounts *auth.AccountStore, tokenMgr *auth.TokenManager) *AuthService {
	return &AuthService{accounts: accounts, tokenMgr: tokenMgr}
}

// Login verifies the password and issues a token carrying the account roles.
func (s *AuthService) Login(_ context.Context, username, password string) (string, time.Time, []domain.Role, error) {
	account, err := s.accounts.Authenticate(username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return "", time.Time{}, nil, apperrors.NewUnauthorized("invalid username or password")
		}
		return "", time.Time{}, nil, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(account.Username, account.Roles)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, exp, account.Roles, nil
}
