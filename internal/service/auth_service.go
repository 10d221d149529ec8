package service

import (
	"context"
	"errors"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/identity"
	"fitpanel/member-app/internal/repository"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// --- Error Definitions ---
var (
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
)

// AuthService authenticates members against the identity provider and pairs
// the credential with its profile from whichever namespace holds it.
type AuthService interface {
	Login(ctx context.Context, email, password string) (token string, account *domain.Account, err error)
	ChangePassword(ctx context.Context, email, newPassword, accountID string) error
	GetJWTSecret() string
}

// authService implements the AuthService interface.
type authService struct {
	idp           identity.Provider
	lifecycle     LifecycleService
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of authService.
func NewAuthService(idp identity.Provider, lifecycle LifecycleService, jwtSecret string, jwtExpiration time.Duration) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour * 1
	}
	return &authService{
		idp:           idp,
		lifecycle:     lifecycle,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// Login verifies the credential and returns a signed token plus the matching
// profile, looked up across both namespaces (trainers first).
func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	if email == "" || password == "" {
		return "", nil, errors.New("email and password cannot be empty")
	}

	cred, err := s.idp.VerifySecret(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, err
	}

	account, err := s.lifecycle.GetByEmailAnyRole(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Credential without a profile: a transient half-created account.
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, err
	}

	token, err := s.generateJWT(cred.UID, account)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}
	return token, account, nil
}

// ChangePassword rotates the credential secret via the identity provider and
// clears the trainer profile's first-login marker.
func (s *authService) ChangePassword(ctx context.Context, email, newPassword, accountID string) error {
	if email == "" || newPassword == "" {
		return errors.New("email and new password cannot be empty")
	}

	cred, err := s.idp.LookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if err := s.idp.UpdateSecret(ctx, cred.UID, newPassword); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if accountID != "" {
		firstLogin := 0
		err := s.lifecycle.UpdateAccountFields(ctx, domain.RoleTrainer, accountID,
			profileUpdateFirstLogin(firstLogin), nil, "")
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return err
		}
	}
	return nil
}

func profileUpdateFirstLogin(v int) repository.ProfileUpdate {
	return repository.ProfileUpdate{FirstLogin: &v}
}

// --- JWT Helper ---

// jwtClaims defines the structure of the JWT payload.
type jwtClaims struct {
	AccountID string      `json:"aid"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (s *authService) generateJWT(uid string, account *domain.Account) (string, error) {
	expirationTime := time.Now().Add(s.jwtExpiration)
	claims := &jwtClaims{
		AccountID: account.ID,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "member-app",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// GetJWTSecret returns the JWT secret for middleware authentication
func (s *authService) GetJWTSecret() string {
	return s.jwtSecret
}
