package guest

import (
	"errors"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Service issues opaque guest tokens so a browser without an account
// can keep one cart across requests. Token presence is the only signal
// the cart uses to pick local routing; everything else about the
// visitor stays unknown.
type Service struct {
	tokens *tokenManager
	ttl    time.Duration
}

func New() *Service {
	return &Service{
		tokens: newTokenManager(),
		ttl:    30 * 24 * time.Hour,
	}
}

// Issue creates a fresh guest identity and a token for it.
func (s *Service) Issue() (token, guestID string, err error) {
	guestID, err = randomID()
	if err != nil {
		return "", "", err
	}
	token, err = s.tokens.Issue(guestID, s.ttl)
	if err != nil {
		return "", "", err
	}
	return token, guestID, nil
}

// Lookup resolves a token back to its guest identity.
func (s *Service) Lookup(token string) (string, error) {
	meta, ok := s.tokens.Validate(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return meta.GuestID, nil
}

func (s *Service) TTLSeconds() int {
	return int(s.ttl.Seconds())
}
