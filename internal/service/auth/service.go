package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/service/users"
)

const (
	codeDigits  = 6
	maxAttempts = 5
)

var (
	// ErrUnregisteredPhone is returned when no user carries the phone number.
	ErrUnregisteredPhone = errors.New("this phone number is not registered; ask an administrator for access")
	// ErrUserNotProvisioned is returned when the code is valid but the user
	// document no longer exists.
	ErrUserNotProvisioned = errors.New("your account is not set up; ask an administrator for access")
	// ErrInvalidCode covers wrong, expired and exhausted codes.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrInvalidSession is returned for unknown or expired session tokens.
	ErrInvalidSession = errors.New("session expired; sign in again")
)

// CodeSender delivers one-time codes.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string, ttl time.Duration) error
}

// UserDirectory is the slice of the user service used to sign in.
type UserDirectory interface {
	Get(ctx context.Context, id string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
}

// Options tunes code and session lifetimes.
type Options struct {
	CodeTTL    time.Duration
	SessionTTL time.Duration
	// EchoCodes returns issued codes to the caller. Development only.
	EchoCodes bool
}

// Session is an authenticated sign-in.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type pendingCode struct {
	code      string
	userID    string
	expiresAt time.Time
	attempts  int
}

// Service issues one-time codes and tracks sessions in memory.
type Service struct {
	users  UserDirectory
	sender CodeSender
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	codes    map[string]*pendingCode
	sessions map[string]Session
	onEnd    []func(token string)
}

// NewService wires an auth service.
func NewService(users UserDirectory, sender CodeSender, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 5 * time.Minute
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	return &Service{
		users:    users,
		sender:   sender,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		codes:    make(map[string]*pendingCode),
		sessions: make(map[string]Session),
	}
}

// OnSessionEnd registers fn to run when a session is logged out or expires.
func (s *Service) OnSessionEnd(fn func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// RequestCode issues a code for a registered phone and sends it. The code is
// returned only when EchoCodes is set.
func (s *Service) RequestCode(ctx context.Context, phone string) (string, error) {
	phone = users.NormalizePhone(phone)
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("lookup phone: %w", err)
	}
	if user == nil {
		return "", ErrUnregisteredPhone
	}

	code, err := newCode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.codes[phone] = &pendingCode{
		code:      code,
		userID:    user.ID,
		expiresAt: s.now().Add(s.opts.CodeTTL),
	}
	s.mu.Unlock()

	if err := s.sender.SendCode(ctx, phone, code, s.opts.CodeTTL); err != nil {
		s.mu.Lock()
		delete(s.codes, phone)
		s.mu.Unlock()
		return "", fmt.Errorf("deliver code: %w", err)
	}

	s.logger.Info("sign-in code issued", zap.String("user_id", user.ID))
	if s.opts.EchoCodes {
		return code, nil
	}
	return "", nil
}

// Verify checks the code and opens a session for the user it was issued to.
// A valid code for a user whose document is gone fails with
// ErrUserNotProvisioned.
func (s *Service) Verify(ctx context.Context, phone, code string) (Session, *models.User, error) {
	phone = users.NormalizePhone(phone)
	now := s.now()

	s.mu.Lock()
	pending, ok := s.codes[phone]
	if !ok || now.After(pending.expiresAt) {
		delete(s.codes, phone)
		s.mu.Unlock()
		return Session{}, nil, ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(pending.code), []byte(code)) != 1 {
		pending.attempts++
		if pending.attempts >= maxAttempts {
			delete(s.codes, phone)
		}
		s.mu.Unlock()
		return Session{}, nil, ErrInvalidCode
	}
	delete(s.codes, phone)
	userID := pending.userID
	s.mu.Unlock()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return Session{}, nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		s.logger.Warn("verified phone has no user document", zap.String("user_id", userID))
		return Session{}, nil, ErrUserNotProvisioned
	}

	session := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	s.logger.Info("session opened", zap.String("user_id", user.ID))
	return session, user, nil
}

// Authenticate resolves a session token to its user. The user is reloaded on
// every call so role changes and removals apply immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, *models.User, error) {
	s.mu.Lock()
	session, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		return Session{}, nil, ErrInvalidSession
	}
	if s.now().After(session.ExpiresAt) {
		s.end(token)
		return Session{}, nil, ErrInvalidSession
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		return Session{}, nil, fmt.Errorf("load user %s: %w", session.UserID, err)
	}
	if user == nil {
		s.end(token)
		return Session{}, nil, ErrUserNotProvisioned
	}
	return session, user, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *Service) Logout(token string) {
	s.end(token)
}

// Sweep drops expired sessions and codes and returns how many sessions ended.
func (s *Service) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var expired []string
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			expired = append(expired, token)
		}
	}
	for phone, pending := range s.codes {
		if now.After(pending.expiresAt) {
			delete(s.codes, phone)
		}
	}
	s.mu.Unlock()

	for _, token := range expired {
		s.end(token)
	}
	return len(expired)
}

func (s *Service) end(token string) {
	s.mu.Lock()
	_, ok := s.sessions[token]
	delete(s.sessions, token)
	hooks := append([]func(string){}, s.onEnd...)
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range hooks {
		fn(token)
	}
}

func newCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
