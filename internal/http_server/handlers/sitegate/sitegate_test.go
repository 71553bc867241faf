package sitegate

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"community_service/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	values map[string]string
	err    error
}

func (f *fakeSettings) Setting(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	v, ok := f.values[key]
	if !ok {
		return "", storage.ErrSettingNotFound
	}

	return v, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/gate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	return rec
}

func TestGate_CorrectConfiguredPassword(t *testing.T) {
	handler := New(testLogger(), validator.New(), &fakeSettings{}, "opensesame")

	rec := doRequest(t, handler, `{"password":"opensesame"}`)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_IncorrectPassword(t *testing.T) {
	handler := New(testLogger(), validator.New(), &fakeSettings{}, "opensesame")

	rec := doRequest(t, handler, `{"password":"guess"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Incorrect password")
}

func TestGate_StoredOverrideWins(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{SitePasswordKey: "rotated"}}
	handler := New(testLogger(), validator.New(), settings, "opensesame")

	rec := doRequest(t, handler, `{"password":"rotated"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, `{"password":"opensesame"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGate_EmptyPasswordRejected(t *testing.T) {
	handler := New(testLogger(), validator.New(), &fakeSettings{}, "opensesame")

	rec := doRequest(t, handler, `{"password":""}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
