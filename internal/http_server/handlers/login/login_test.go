package login

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"community_service/internal/auth"
	"community_service/internal/lib/session"
	"community_service/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type fakeAuthenticator struct {
	credential string
	user       models.User
	err        error
}

func (f *fakeAuthenticator) Login(context.Context, string, string) (string, models.User, error) {
	return f.credential, f.user, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	return rec
}

func TestLogin_SuccessSetsCookie(t *testing.T) {
	sessions := session.New("secret", time.Hour, "session", true)
	svc := &fakeAuthenticator{
		credential: "signed-token",
		user:       models.User{ID: "user-1"},
	}
	handler := New(testLogger(), validator.New(), svc, sessions)

	rec := doRequest(t, handler, `{"email":"a@x.com","password":"password1"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.Equal(t, "signed-token", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	sessions := session.New("secret", time.Hour, "session", true)
	svc := &fakeAuthenticator{err: auth.ErrInvalidCredentials}
	handler := New(testLogger(), validator.New(), svc, sessions)

	rec := doRequest(t, handler, `{"email":"a@x.com","password":"wrongpw"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestLogin_ErrorBodyIdenticalForUnknownEmailAndWrongPassword(t *testing.T) {
	sessions := session.New("secret", time.Hour, "session", true)
	svc := &fakeAuthenticator{err: auth.ErrInvalidCredentials}
	handler := New(testLogger(), validator.New(), svc, sessions)

	recUnknown := doRequest(t, handler, `{"email":"nobody@x.com","password":"password1"}`)
	recWrongPw := doRequest(t, handler, `{"email":"a@x.com","password":"wrongpw"}`)

	require.Equal(t, recUnknown.Code, recWrongPw.Code)
	require.Equal(t, recUnknown.Body.String(), recWrongPw.Body.String())
}

func TestLogin_EmailNotVerified(t *testing.T) {
	sessions := session.New("secret", time.Hour, "session", true)
	svc := &fakeAuthenticator{err: auth.ErrEmailNotVerified}
	handler := New(testLogger(), validator.New(), svc, sessions)

	rec := doRequest(t, handler, `{"email":"a@x.com","password":"password1"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "not verified")
}

func TestLogin_Validation(t *testing.T) {
	sessions := session.New("secret", time.Hour, "session", true)
	handler := New(testLogger(), validator.New(), &fakeAuthenticator{}, sessions)

	rec := doRequest(t, handler, `{"email":"not-an-email","password":""}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
