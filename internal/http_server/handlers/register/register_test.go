package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"community_service/internal/auth"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type fakeRegisterer struct {
	userID string
	err    error

	gotEmail    string
	gotPassword string
	gotNickname string
	calls       int
}

func (f *fakeRegisterer) Register(_ context.Context, email, password, nickname string) (string, error) {
	f.calls++
	f.gotEmail = email
	f.gotPassword = password
	f.gotNickname = nickname

	return f.userID, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	return rec
}

func TestRegister_Success(t *testing.T) {
	svc := &fakeRegisterer{userID: "user-1"}
	handler := New(testLogger(), validator.New(), svc)

	rec := doRequest(t, handler, `{"email":"a@x.com","password":"password1","nickname":"Al"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var got Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "ok", got.Status)
	require.Equal(t, "user-1", got.UserID)

	require.Equal(t, 1, svc.calls)
	require.Equal(t, "a@x.com", svc.gotEmail)
	require.Equal(t, "Al", svc.gotNickname)
}

func TestRegister_ValidationRejectedBeforeService(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed email", `{"email":"not-an-email","password":"password1","nickname":"Al"}`},
		{"short password", `{"email":"a@x.com","password":"short","nickname":"Al"}`},
		{"empty nickname", `{"email":"a@x.com","password":"password1","nickname":""}`},
		{"missing fields", `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeRegisterer{userID: "user-1"}
			handler := New(testLogger(), validator.New(), svc)

			rec := doRequest(t, handler, tc.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Zero(t, svc.calls, "validation failures must never reach the service")
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc := &fakeRegisterer{err: auth.ErrUserExists}
	handler := New(testLogger(), validator.New(), svc)

	rec := doRequest(t, handler, `{"email":"a@x.com","password":"password2","nickname":"Al2"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_InternalErrorIsOpaque(t *testing.T) {
	svc := &fakeRegisterer{err: errors.New("pg: connection refused")}
	handler := New(testLogger(), validator.New(), svc)

	rec := doRequest(t, handler, `{"email":"a@x.com","password":"password1","nickname":"Al"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}
