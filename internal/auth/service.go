package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/abduss/stopsurvey/internal/catalog"
	"github.com/abduss/stopsurvey/internal/config"
)

const (
	minPINLength = 4
	maxPINLength = 72 // bcrypt limit
	audience     = "stopsurvey-api"
)

// staffDirectory looks up surveyors; the catalog implements it.
type staffDirectory interface {
	Staff(id string) (catalog.Staff, bool)
}

// Service authenticates staff against the catalog and issues access tokens.
type Service struct {
	staff    staffDirectory
	cfg      config.AuthConfig
	nowFunc  func() time.Time
	idIssuer string
	parser   *jwt.Parser
}

// NewService creates a Service with dependencies.
func NewService(staff staffDirectory, cfg config.AuthConfig) *Service {
	return &Service{
		staff:    staff,
		cfg:      cfg,
		nowFunc:  time.Now,
		idIssuer: "stopsurvey",
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithAudience(audience),
		),
	}
}

// LoginInput carries login credentials.
type LoginInput struct {
	StaffID string
	PIN     string
}

// LoginResult contains the staff identity and its access token.
type LoginResult struct {
	Staff Staff
	Token AccessToken
}

// StaffClaims describes the validated identity extracted from an access token.
type StaffClaims struct {
	StaffID   string
	Name      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Login checks the staff PIN and issues an access token.
func (s *Service) Login(_ context.Context, input LoginInput) (LoginResult, error) {
	id := strings.TrimSpace(input.StaffID)
	if id == "" || !validPIN(input.PIN) {
		return LoginResult{}, ErrInvalidCredentials
	}

	member, ok := s.staff.Staff(id)
	if !ok || member.PINHash == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PINHash), []byte(input.PIN)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateAccessToken(member, s.nowFunc())
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate access token: %w", err)
	}
	return LoginResult{Staff: Staff{ID: member.ID, Name: member.Name}, Token: token}, nil
}

// ValidateAccessToken verifies the token signature and extracts staff claims.
func (s *Service) ValidateAccessToken(tokenString string) (StaffClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return StaffClaims{}, ErrUnauthorized
	}

	parsed, err := s.parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.AccessTokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return StaffClaims{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return StaffClaims{}, ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return StaffClaims{}, ErrUnauthorized
	}
	// Staff removed from the catalog lose access before their token expires.
	if _, ok := s.staff.Staff(sub); !ok {
		return StaffClaims{}, ErrUnauthorized
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || exp.Before(s.nowFunc()) {
		return StaffClaims{}, ErrUnauthorized
	}

	var iat time.Time
	if issued, err := claims.GetIssuedAt(); err == nil && issued != nil {
		iat = issued.Time
	}
	name, _ := claims["name"].(string)

	return StaffClaims{
		StaffID:   sub,
		Name:      name,
		ExpiresAt: exp.Time,
		IssuedAt:  iat,
	}, nil
}

func (s *Service) generateAccessToken(member catalog.Staff, now time.Time) (AccessToken, error) {
	expiresAt := now.Add(s.cfg.AccessTokenTTL)
	claims := jwt.MapClaims{
		"sub":  member.ID,
		"iss":  s.idIssuer,
		"aud":  audience,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
		"name": member.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.AccessTokenSecret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// HashPIN returns the bcrypt hash stored in the catalog for a staff PIN.
func HashPIN(pin string, cost int) (string, error) {
	if !validPIN(pin) {
		return "", fmt.Errorf("%w: must be %d to %d characters", ErrInvalidPIN, minPINLength, maxPINLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func validPIN(pin string) bool {
	return len(strings.TrimSpace(pin)) >= minPINLength && len(pin) <= maxPINLength
}
