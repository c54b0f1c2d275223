package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/repository/memory"
	"github.com/mamadbah2/fieldtrack/internal/service/users"
)

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (r *recordingSender) SendCode(_ context.Context, phone, code string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.codes == nil {
		r.codes = make(map[string]string)
	}
	r.codes[phone] = code
	return nil
}

func (r *recordingSender) last(phone string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[phone]
}

type fixture struct {
	svc    *Service
	users  *users.Service
	sender *recordingSender
	clock  time.Time
	userID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userSvc := users.NewService(memory.NewStore(), nil)
	id, err := userSvc.Create(context.Background(), models.User{Name: "Asha", Phone: "+91 98123 45678", Role: models.RoleEmployee})
	require.NoError(t, err)

	f := &fixture{
		users:  userSvc,
		sender: &recordingSender{},
		clock:  time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		userID: id,
	}
	f.svc = NewService(userSvc, f.sender, Options{CodeTTL: 5 * time.Minute, SessionTTL: time.Hour}, nil)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestSignInFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	echoed, err := f.svc.RequestCode(ctx, "+91 98123-45678")
	require.NoError(t, err)
	assert.Empty(t, echoed, "codes are not echoed by default")

	code := f.sender.last("+919812345678")
	require.Len(t, code, 6)

	session, user, err := f.svc.Verify(ctx, "+919812345678", code)
	require.NoError(t, err)
	assert.Equal(t, f.userID, user.ID)
	assert.NotEmpty(t, session.Token)

	_, got, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)

	_, _, err = f.svc.Verify(ctx, "+919812345678", code)
	assert.ErrorIs(t, err, ErrInvalidCode, "codes are single use")
}

func TestRequestCodeUnregisteredPhone(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RequestCode(context.Background(), "+10000000000")
	assert.ErrorIs(t, err, ErrUnregisteredPhone)
}

func TestRequestCodeDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("whatsapp down")
	_, err := f.svc.RequestCode(context.Background(), "+919812345678")
	require.Error(t, err)

	_, _, err = f.svc.Verify(context.Background(), "+919812345678", "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyRejectsUnprovisionedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.opts.EchoCodes = true

	code, err := f.svc.RequestCode(ctx, "+919812345678")
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(ctx, f.userID))

	_, _, err = f.svc.Verify(ctx, "+919812345678", code)
	assert.ErrorIs(t, err, ErrUserNotProvisioned)
}

func TestVerifyExpiredAndExhaustedCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.opts.EchoCodes = true

	code, err := f.svc.RequestCode(ctx, "+919812345678")
	require.NoError(t, err)
	f.clock = f.clock.Add(6 * time.Minute)
	_, _, err = f.svc.Verify(ctx, "+919812345678", code)
	assert.ErrorIs(t, err, ErrInvalidCode)

	code, err = f.svc.RequestCode(ctx, "+919812345678")
	require.NoError(t, err)
	for i := 0; i < maxAttempts; i++ {
		_, _, err = f.svc.Verify(ctx, "+919812345678", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
	_, _, err = f.svc.Verify(ctx, "+919812345678", code)
	assert.ErrorIs(t, err, ErrInvalidCode, "code is burned after too many attempts")
}

func TestLogoutAndExpiryRunHooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.opts.EchoCodes = true

	var ended []string
	f.svc.OnSessionEnd(func(token string) { ended = append(ended, token) })

	open := func() Session {
		code, err := f.svc.RequestCode(ctx, "+919812345678")
		require.NoError(t, err)
		s, _, err := f.svc.Verify(ctx, "+919812345678", code)
		require.NoError(t, err)
		return s
	}

	first := open()
	f.svc.Logout(first.Token)
	f.svc.Logout(first.Token)
	assert.Equal(t, []string{first.Token}, ended)

	_, _, err := f.svc.Authenticate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	second := open()
	f.clock = f.clock.Add(2 * time.Hour)
	assert.Equal(t, 1, f.svc.Sweep())
	assert.Equal(t, []string{first.Token, second.Token}, ended)
}

func TestNewCodeFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := newCode()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
