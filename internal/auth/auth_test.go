package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"community_service/internal/models"
	"community_service/internal/storage"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	users map[string]models.User

	saveErr   error
	rotateErr error

	beforeRotate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]models.User)}
}

func (f *fakeStore) SaveUser(_ context.Context, u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}

	for _, existing := range f.users {
		if existing.Email != nil && u.Email != nil && *existing.Email == *u.Email {
			return storage.ErrUserExists
		}
	}

	u.CreatedAt = time.Now()
	f.users[u.ID] = u

	return nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) UserByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, nil
}

func (f *fakeStore) ConsumeVerificationToken(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, u := range f.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			u.IsVerified = true
			u.VerificationToken = nil
			f.users[id] = u

			return id, nil
		}
	}

	return "", storage.ErrTokenNotFound
}

func (f *fakeStore) RotateVerificationToken(_ context.Context, userID, token string) error {
	if f.beforeRotate != nil {
		f.beforeRotate()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rotateErr != nil {
		return f.rotateErr
	}

	u, ok := f.users[userID]
	if !ok || u.IsVerified {
		return storage.ErrUserNotFound
	}

	u.VerificationToken = &token
	f.users[userID] = u

	return nil
}

// verify marks the account verified behind the service's back, as a
// concurrent request would.
func (f *fakeStore) verify(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.users[userID]
	u.IsVerified = true
	u.VerificationToken = nil
	f.users[userID] = u
}

func (f *fakeStore) UpdateLastSignedIn(_ context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	u.LastSignedIn = &at
	f.users[userID] = u

	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []models.EmailMessage
	err  error
}

func (f *fakePublisher) SendMessage(_ context.Context, msg models.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, msg)

	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sent)
}

type fakeSessions struct{}

func (fakeSessions) Issue(userID, _, _ string) (string, error) {
	return "credential-" + userID, nil
}

func newTestAuth(store *fakeStore, pub *fakePublisher, adminEmail string) *Auth {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, store, store, pub, fakeSessions{}, adminEmail, "http://localhost:8080")
}

func TestRegister_CreatesUnverifiedAccountWithToken(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	a := newTestAuth(store, pub, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.False(t, user.IsVerified)
	require.NotNil(t, user.VerificationToken)
	require.Len(t, *user.VerificationToken, 64)
	require.Equal(t, models.RoleUser, user.Role)

	require.Equal(t, 1, pub.count())
	require.Equal(t, "a@x.com", pub.sent[0].To)
	require.Contains(t, pub.sent[0].HTMLBody, *user.VerificationToken)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newFakeStore()
	a := newTestAuth(store, &fakePublisher{}, "")

	_, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	_, err = a.Register(context.Background(), "a@x.com", "password2", "Al2")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_AdminEmailGetsAdminRole(t *testing.T) {
	store := newFakeStore()
	a := newTestAuth(store, &fakePublisher{}, "boss@x.com")

	id, err := a.Register(context.Background(), "boss@x.com", "password1", "Boss")
	require.NoError(t, err)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, user.Role)
}

func TestRegister_EmailFailureDoesNotFailRegistration(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	a := newTestAuth(store, pub, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.False(t, user.IsVerified)
	require.NotNil(t, user.VerificationToken)
}

func TestVerifyEmail_ConsumesTokenExactlyOnce(t *testing.T) {
	store := newFakeStore()
	a := newTestAuth(store, &fakePublisher{}, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	token := *user.VerificationToken

	require.NoError(t, a.VerifyEmail(context.Background(), token))

	user, err = store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, user.IsVerified)
	require.Nil(t, user.VerificationToken)

	// Replaying a consumed token must fail.
	require.ErrorIs(t, a.VerifyEmail(context.Background(), token), ErrInvalidToken)
}

func TestVerifyEmail_UnknownToken(t *testing.T) {
	a := newTestAuth(newFakeStore(), &fakePublisher{}, "")

	err := a.VerifyEmail(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogin_Flow(t *testing.T) {
	store := newFakeStore()
	a := newTestAuth(store, &fakePublisher{}, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	// Before verification the failure is distinct and user-actionable.
	_, _, err = a.Login(context.Background(), "a@x.com", "password1")
	require.ErrorIs(t, err, ErrEmailNotVerified)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, a.VerifyEmail(context.Background(), *user.VerificationToken))

	credential, loggedIn, err := a.Login(context.Background(), "a@x.com", "password1")
	require.NoError(t, err)
	require.Equal(t, "credential-"+id, credential)
	require.Equal(t, id, loggedIn.ID)
	require.NotNil(t, loggedIn.LastSignedIn)

	_, _, err = a.Login(context.Background(), "a@x.com", "wrongpw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	store := newFakeStore()
	a := newTestAuth(store, &fakePublisher{}, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, a.VerifyEmail(context.Background(), *user.VerificationToken))

	_, _, errUnknown := a.Login(context.Background(), "nobody@x.com", "password1")
	_, _, errWrongPw := a.Login(context.Background(), "a@x.com", "wrongpw")

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrongPw.Error())
}

func TestLogin_AccountWithoutPasswordHash(t *testing.T) {
	store := newFakeStore()
	a := newTestAuth(store, &fakePublisher{}, "")

	email := "sync@x.com"
	store.users["ext-1"] = models.User{
		ID:         "ext-1",
		Email:      &email,
		IsVerified: true,
		Role:       models.RoleUser,
	}

	_, _, err := a.Login(context.Background(), email, "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResendVerification_RotatesTokenForUnverified(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	a := newTestAuth(store, pub, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	oldToken := *user.VerificationToken

	require.NoError(t, a.ResendVerification(context.Background(), "a@x.com"))

	user, err = store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user.VerificationToken)
	require.NotEqual(t, oldToken, *user.VerificationToken)

	require.Equal(t, 2, pub.count())

	// The old token is no longer stored anywhere, so it cannot verify.
	require.ErrorIs(t, a.VerifyEmail(context.Background(), oldToken), ErrInvalidToken)
	require.NoError(t, a.VerifyEmail(context.Background(), *user.VerificationToken))
}

func TestResendVerification_VerifiedAccountIsNoOp(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	a := newTestAuth(store, pub, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, a.VerifyEmail(context.Background(), *user.VerificationToken))

	require.NoError(t, a.ResendVerification(context.Background(), "a@x.com"))

	user, err = store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, user.VerificationToken)
	require.Equal(t, 1, pub.count())
}

func TestResendVerification_VerifyWinningTheRaceLeavesNoToken(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	a := newTestAuth(store, pub, "")

	id, err := a.Register(context.Background(), "a@x.com", "password1", "Al")
	require.NoError(t, err)

	// Verification lands after the resend has read the account but
	// before it rotates the token.
	store.beforeRotate = func() { store.verify(id) }

	require.NoError(t, a.ResendVerification(context.Background(), "a@x.com"))

	user, err := store.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, user.IsVerified)
	require.Nil(t, user.VerificationToken)

	// Only the registration email went out.
	require.Equal(t, 1, pub.count())
}

func TestResendVerification_UnknownEmailIsNoOp(t *testing.T) {
	pub := &fakePublisher{}
	a := newTestAuth(newFakeStore(), pub, "")

	require.NoError(t, a.ResendVerification(context.Background(), "nobody@x.com"))
	require.Equal(t, 0, pub.count())
}
