// Package auth implements the passcode login: a static passcode-to-role
// lookup guarded by a per-client attempt limiter, handing out opaque tokens
// that live for the process lifetime.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"islatel/internal/config"
	"islatel/internal/models"
)

var (
	ErrInvalidPasscode = errors.New("invalid passcode")
	ErrTooManyAttempts = errors.New("too many login attempts, try again later")
)

// Session is a successful login.
type Session struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type Service struct {
	adminPasscode string
	staffPasscode string
	limit         int
	window        time.Duration
	limiter       AttemptLimiter
	logger        *zerolog.Logger

	mu     sync.RWMutex
	tokens map[string]string
}

func NewService(cfg config.AuthConfig, limiter AttemptLimiter, logger *zerolog.Logger) *Service {
	return &Service{
		adminPasscode: cfg.AdminPasscode,
		staffPasscode: cfg.StaffPasscode,
		limit:         cfg.RateLimitAttempts,
		window:        time.Duration(cfg.RateLimitWindow) * time.Second,
		limiter:       limiter,
		logger:        logger,
		tokens:        make(map[string]string),
	}
}

// Login checks the passcode and issues a session token. Attempts are counted
// per client key regardless of outcome; a denied attempt still burns one.
func (s *Service) Login(ctx context.Context, clientKey, passcode string) (*Session, error) {
	allowed, err := s.limiter.Allow(ctx, clientKey, s.limit, s.window)
	if err != nil {
		// The limiter itself failing must not lock everyone out.
		s.logger.Warn().Err(err).Msg("attempt limiter unavailable, allowing login check")
	} else if !allowed {
		s.logger.Warn().Str("client", clientKey).Msg("login rate limit exceeded")
		return nil, ErrTooManyAttempts
	}

	var role string
	switch {
	case equal(passcode, s.adminPasscode):
		role = models.RoleAdmin
	case equal(passcode, s.staffPasscode):
		role = models.RoleStaff
	default:
		return nil, ErrInvalidPasscode
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = role
	s.mu.Unlock()

	s.logger.Info().Str("role", role).Msg("login succeeded")
	return &Session{Token: token, Role: role}, nil
}

// RoleFor resolves a session token. Tokens survive until logout or process
// exit; there is no persistence.
func (s *Service) RoleFor(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.tokens[token]
	return role, ok
}

func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
