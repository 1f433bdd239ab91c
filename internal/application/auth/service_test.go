package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blog-otp-auth/internal/domain"
	"github.com/blog-otp-auth/internal/infrastructure/memory"
	jwtinfra "github.com/blog-otp-auth/internal/infrastructure/jwt"
	"github.com/blog-otp-auth/internal/infrastructure/ticket"
	"github.com/blog-otp-auth/internal/pkg/otpcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes and mocks ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// captureNotifier remembers the last code sent to each address.
type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	err   error
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{codes: make(map[string]string)}
}

func (n *captureNotifier) SendOTP(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	n.codes[email] = code
	return n.err
}

func (n *captureNotifier) code(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

// --- fixture ---

const wrongCode = "000000"

type fixture struct {
	svc      Service
	store    *memory.OTPStore
	users    *memory.UserRepo
	notifier *captureNotifier
	clock    *fakeClock
	tokens   *jwtinfra.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := jwtinfra.NewProvider("test-secret", jwtinfra.WithClock(clock.Now))
	require.NoError(t, err)
	f := &fixture{
		store:    memory.NewOTPStore(),
		users:    memory.NewUserRepo(),
		notifier: newCaptureNotifier(),
		clock:    clock,
		tokens:   tokens,
	}
	f.svc = NewService(ServiceDeps{
		OTPStore:  f.store,
		UserStore: f.users,
		Notifier:  f.notifier,
		Tokens:    tokens,
		Hasher:    otpcode.BcryptHasher{Cost: bcrypt.MinCost},
		Clock:     clock.Now,
	})
	return f
}

func (f *fixture) addUser(t *testing.T, userID, email string) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &domain.User{UserID: userID, Email: email, Username: "user"}))
}

func (f *fixture) request(t *testing.T, email string, signup bool) string {
	t.Helper()
	_, err := f.svc.RequestCode(context.Background(), SendOTPRequest{Email: email, IsSignup: signup})
	require.NoError(t, err)
	code := f.notifier.code(domain.NormalizeEmail(email))
	require.Len(t, code, 6)
	return code
}

func (f *fixture) login(email, code string) (string, error) {
	return f.svc.Login(context.Background(), VerifyOTPRequest{Email: email, OTP: code})
}

// --- RequestCode ---

func TestRequestCode_EmailRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RequestCode(context.Background(), SendOTPRequest{Email: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, f.notifier.sent)
}

func TestRequestCode_LoginUnknownEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RequestCode(context.Background(), SendOTPRequest{Email: "nobody@x.com"})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, 0, f.notifier.sent)
	assert.Equal(t, 0, f.store.Len())
}

func TestRequestCode_SignupExistingEmail(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	_, err := f.svc.RequestCode(context.Background(), SendOTPRequest{Email: "a@x.com", IsSignup: true})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRequestCode_NormalizesEmail(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	code := f.request(t, "  A@X.com ", false)

	rec, err := f.store.Get(context.Background(), "a@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, domain.PurposeLogin, rec.Purpose)
	assert.NotContains(t, rec.CodeHash, code)
}

func TestRequestCode_DeliveryFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	f.notifier.err = errors.New("smtp down")

	_, err := f.svc.RequestCode(context.Background(), SendOTPRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrDelivery)
	assert.Equal(t, 1, f.store.Len())
}

func TestRequestCode_UserStoreDown(t *testing.T) {
	users := new(mockUserStore)
	users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("connection refused"))
	svc := NewService(ServiceDeps{
		OTPStore:  memory.NewOTPStore(),
		UserStore: users,
		Notifier:  newCaptureNotifier(),
	})

	_, err := svc.RequestCode(context.Background(), SendOTPRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestRequestCode_SecondRequestInvalidatesFirst(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	first := f.request(t, "a@x.com", false)
	second := f.request(t, "a@x.com", false)
	if first == second {
		t.Skip("generator repeated a code")
	}

	_, err := f.login("a@x.com", first)
	assert.ErrorIs(t, err, domain.ErrMismatch)
	_, err = f.login("a@x.com", second)
	assert.NoError(t, err)
}

// --- Login ---

func TestLogin_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	code := f.request(t, "a@x.com", false)

	token, err := f.login("a@x.com", code)
	require.NoError(t, err)

	claims, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.String(domain.ClaimEmail))
	assert.Equal(t, "u1", claims.String(domain.ClaimUserID))
	assert.Equal(t, domain.TokenTypeSession, claims.String(domain.ClaimType))
	assert.Equal(t, 0, f.store.Len())
}

func TestLogin_NoCodeRequested(t *testing.T) {
	f := newFixture(t)
	_, err := f.login("a@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrOTPNotSent)
}

func TestLogin_CodeCannotBeReplayed(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	code := f.request(t, "a@x.com", false)

	_, err := f.login("a@x.com", code)
	require.NoError(t, err)
	_, err = f.login("a@x.com", code)
	assert.ErrorIs(t, err, domain.ErrOTPNotSent)
}

func TestLogin_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")

	code := f.request(t, "a@x.com", false)
	f.clock.Advance(4*time.Minute + 59*time.Second)
	_, err := f.login("a@x.com", code)
	assert.NoError(t, err)

	code = f.request(t, "a@x.com", false)
	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.login("a@x.com", code)
	assert.ErrorIs(t, err, domain.ErrOTPExpired)
	// the expired record is dropped
	_, err = f.login("a@x.com", code)
	assert.ErrorIs(t, err, domain.ErrOTPNotSent)
}

func TestLogin_AttemptsExhausted(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	code := f.request(t, "a@x.com", false)

	_, err := f.login("a@x.com", wrongCode)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	_, err = f.login("a@x.com", wrongCode)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	_, err = f.login("a@x.com", wrongCode)
	assert.ErrorIs(t, err, domain.ErrExhausted)

	// the right code no longer works
	_, err = f.login("a@x.com", code)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

	// a new request resets the budget
	code = f.request(t, "a@x.com", false)
	_, err = f.login("a@x.com", code)
	assert.NoError(t, err)
}

func TestLogin_AcceptsSignupCode(t *testing.T) {
	f := newFixture(t)
	code := f.request(t, "new@x.com", true)

	token, err := f.login("new@x.com", code)
	require.NoError(t, err)
	claims, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Empty(t, claims.String(domain.ClaimUserID))
}

func TestLogin_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	code := f.request(t, "a@x.com", false)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.login("a@x.com", code); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

// --- Signup ---

func TestSignup_HappyPath(t *testing.T) {
	f := newFixture(t)
	code := f.request(t, "new@x.com", true)

	res, err := f.svc.Signup(context.Background(), CompleteSignupRequest{
		Email: "new@x.com", Username: "newbie", Name: "New User", OTP: code,
	})
	require.NoError(t, err)
	assert.Equal(t, "newbie", res.User.Username)
	assert.NotEmpty(t, res.User.UserID)

	stored, err := f.users.GetByEmail(context.Background(), "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, res.User.UserID, stored.UserID)

	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.UserID, claims.String(domain.ClaimUserID))

	_, err = f.svc.Signup(context.Background(), CompleteSignupRequest{
		Email: "new@x.com", Username: "again", Name: "Again", OTP: code,
	})
	assert.ErrorIs(t, err, domain.ErrOTPNotSent)
}

func TestSignup_WrongPurpose(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "a@x.com")
	code := f.request(t, "a@x.com", false)

	_, err := f.svc.Signup(context.Background(), CompleteSignupRequest{
		Email: "a@x.com", Username: "alice", Name: "Alice", OTP: code,
	})
	assert.ErrorIs(t, err, domain.ErrWrongPurpose)

	// the login code survives the rejected signup
	_, err = f.login("a@x.com", code)
	assert.NoError(t, err)
}

func TestSignup_CreateConflict(t *testing.T) {
	users := new(mockUserStore)
	users.On("GetByEmail", mock.Anything, "new@x.com").Return(nil, domain.ErrNotFound)
	users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(domain.ErrConflict)
	notifier := newCaptureNotifier()
	svc := NewService(ServiceDeps{
		OTPStore:  memory.NewOTPStore(),
		UserStore: users,
		Notifier:  notifier,
		Tokens:    mustProvider(t),
		Hasher:    otpcode.BcryptHasher{Cost: bcrypt.MinCost},
	})

	_, err := svc.RequestCode(context.Background(), SendOTPRequest{Email: "new@x.com", IsSignup: true})
	require.NoError(t, err)
	_, err = svc.Signup(context.Background(), CompleteSignupRequest{
		Email: "new@x.com", Username: "newbie", Name: "New", OTP: notifier.code("new@x.com"),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	users.AssertExpectations(t)
}

func mustProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	p, err := jwtinfra.NewProvider("test-secret")
	require.NoError(t, err)
	return p
}

// --- stateless tickets ---

func newTicketFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.svc = NewService(ServiceDeps{
		OTPStore:  ticket.NewStore(f.tokens, f.clock.Now),
		UserStore: f.users,
		Notifier:  f.notifier,
		Tokens:    f.tokens,
		Hasher:    otpcode.NewHMACHasher("test-secret"),
		Clock:     f.clock.Now,
	})
	return f
}

func TestTicket_LoginRoundTrip(t *testing.T) {
	f := newTicketFixture(t)
	f.addUser(t, "u1", "a@x.com")
	ctx := context.Background()

	res, err := f.svc.RequestCode(ctx, SendOTPRequest{Email: "a@x.com"})
	require.NoError(t, err)
	require.NotEmpty(t, res.OTPToken)
	code := f.notifier.code("a@x.com")
	assert.NotContains(t, res.OTPToken, code)

	token, err := f.svc.Login(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: code, OTPToken: res.OTPToken})
	require.NoError(t, err)
	claims, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeSession, claims.String(domain.ClaimType))
}

func TestTicket_WrongCodeReturnsNextTicket(t *testing.T) {
	f := newTicketFixture(t)
	f.addUser(t, "u1", "a@x.com")
	ctx := context.Background()
	res, err := f.svc.RequestCode(ctx, SendOTPRequest{Email: "a@x.com"})
	require.NoError(t, err)

	handle := res.OTPToken
	for i := 0; i < 2; i++ {
		_, err = f.svc.Login(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: wrongCode, OTPToken: handle})
		var ae *AttemptError
		require.ErrorAs(t, err, &ae)
		assert.ErrorIs(t, err, domain.ErrInvalidOTP)
		handle = ae.Handle
	}
	_, err = f.svc.Login(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: wrongCode, OTPToken: handle})
	var ae *AttemptError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

	_, err = f.svc.Login(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: f.notifier.code("a@x.com"), OTPToken: ae.Handle})
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)
}

func TestTicket_EmailMismatch(t *testing.T) {
	f := newTicketFixture(t)
	f.addUser(t, "u1", "a@x.com")
	ctx := context.Background()
	res, err := f.svc.RequestCode(ctx, SendOTPRequest{Email: "a@x.com"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, VerifyOTPRequest{Email: "b@x.com", OTP: f.notifier.code("a@x.com"), OTPToken: res.OTPToken})
	assert.ErrorIs(t, err, domain.ErrEmailMismatch)
}

func TestTicket_Expired(t *testing.T) {
	f := newTicketFixture(t)
	f.addUser(t, "u1", "a@x.com")
	ctx := context.Background()
	res, err := f.svc.RequestCode(ctx, SendOTPRequest{Email: "a@x.com"})
	require.NoError(t, err)

	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.svc.Login(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: f.notifier.code("a@x.com"), OTPToken: res.OTPToken})
	assert.ErrorIs(t, err, domain.ErrOTPExpired)
}

func TestTicket_MissingHandle(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.Login(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidTicket)
}

// idOnlyUsers enforces unique ids but not unique emails, like a table keyed
// on user_id alone.
type idOnlyUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	calls int
}

func (u *idOnlyUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, v := range u.byID {
		if v.Email == email {
			return v, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (u *idOnlyUsers) Create(_ context.Context, user *domain.User) error {
	time.Sleep(time.Millisecond)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if _, ok := u.byID[user.UserID]; ok {
		return domain.ErrConflict
	}
	u.byID[user.UserID] = user
	return nil
}

func TestTicket_ConcurrentSignupCreatesOneUser(t *testing.T) {
	f := newFixture(t)
	users := &idOnlyUsers{byID: make(map[string]*domain.User)}
	svc := NewService(ServiceDeps{
		OTPStore:  ticket.NewStore(f.tokens, f.clock.Now),
		UserStore: users,
		Notifier:  f.notifier,
		Tokens:    f.tokens,
		Hasher:    otpcode.NewHMACHasher("test-secret"),
		Clock:     f.clock.Now,
	})
	ctx := context.Background()
	res, err := svc.RequestCode(ctx, SendOTPRequest{Email: "a@x.com", IsSignup: true})
	require.NoError(t, err)
	req := CompleteSignupRequest{
		Email:    "a@x.com",
		Username: "alice",
		Name:     "Alice",
		OTP:      f.notifier.code("a@x.com"),
		OTPToken: res.OTPToken,
	}

	const n = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		rejects int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Signup(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrAlreadyExists):
				rejects++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, rejects)
	assert.Len(t, users.byID, 1)
	assert.Equal(t, 1, users.calls)
}
