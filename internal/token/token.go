// Package token issues and verifies the two credential kinds Rostrum
// uses: single-use invitation tokens bound to one session, and short-lived
// transport tokens that authenticate a realtime connection to a user
// identity. Transport tokens are signed JWTs verifiable by any process
// holding the shared secret; invitation tokens are opaque store rows.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zulandar/rostrum/internal/store"
	"gorm.io/gorm"
)

// ErrInvalidTransport is returned for missing, malformed, expired, or
// badly signed transport tokens.
var ErrInvalidTransport = errors.New("token: invalid transport token")

// Service mints and verifies tokens.
type Service struct {
	db            *gorm.DB
	secret        []byte
	transportTTL  time.Duration
	invitationTTL time.Duration
	baseURL       string
	now           func() time.Time
}

// ServiceOpts holds parameters for creating a Service.
type ServiceOpts struct {
	DB            *gorm.DB
	Secret        string
	TransportTTL  time.Duration
	InvitationTTL time.Duration
	BaseURL       string
}

// NewService creates a Service.
func NewService(opts ServiceOpts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("token: db is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("token: secret is required")
	}
	transportTTL := opts.TransportTTL
	if transportTTL <= 0 {
		transportTTL = time.Hour
	}
	invitationTTL := opts.InvitationTTL
	if invitationTTL <= 0 {
		invitationTTL = 24 * time.Hour
	}
	return &Service{
		db:            opts.DB,
		secret:        []byte(opts.Secret),
		transportTTL:  transportTTL,
		invitationTTL: invitationTTL,
		baseURL:       opts.BaseURL,
		now:           time.Now,
	}, nil
}

// IssueTransport mints a signed transport token for a user identity.
// It carries no session scope; room membership is authorized at join.
func (s *Service) IssueTransport(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("token: userID is required")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.transportTTL)),
		Issuer:    "rostrum",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign transport token: %w", err)
	}
	return signed, nil
}

// VerifyTransport checks a transport token and returns the user identity
// it asserts. Any failure collapses to ErrInvalidTransport; the caller
// refuses the connection either way.
func (s *Service) VerifyTransport(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidTransport
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidTransport
	}
	return claims.Subject, nil
}

// Invitation is an issued invitation token with its redemption URL.
type Invitation struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueInvitation mints a fresh invitation token for a session. Earlier
// unused tokens stay redeemable until their own expiry.
func (s *Service) IssueInvitation(sessionID string) (*Invitation, error) {
	inv, err := store.CreateInvitation(s.db, sessionID, s.invitationTTL)
	if err != nil {
		return nil, err
	}
	return &Invitation{
		Token:     inv.Token,
		URL:       fmt.Sprintf("%s/join/%s?token=%s", s.baseURL, sessionID, inv.Token),
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

// RedeemInvitation consumes an invitation token for userID. Store-level
// atomicity guarantees exactly one redeemer wins a contested token.
func (s *Service) RedeemInvitation(raw, sessionID, userID string) error {
	return store.ConsumeInvitation(s.db, raw, sessionID, userID)
}

// SweepExpired removes unused invitation tokens past their expiry.
func (s *Service) SweepExpired() (int64, error) {
	return store.ExpireInvitations(s.db, s.now())
}
