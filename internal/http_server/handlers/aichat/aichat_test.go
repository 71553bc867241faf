package aichat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"community_service/internal/llm"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type fakeChatter struct {
	answer llm.Message
	err    error
	got    []llm.Message
}

func (f *fakeChatter) ChatCompletion(_ context.Context, messages []llm.Message) (llm.Message, error) {
	f.got = messages

	return f.answer, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	return rec
}

func TestChat_PrependsSystemPrompt(t *testing.T) {
	chatter := &fakeChatter{answer: llm.Message{Role: "assistant", Content: "Use the task panel."}}
	handler := New(testLogger(), validator.New(), chatter)

	rec := doRequest(t, handler, `{"messages":[{"role":"user","content":"How do I start a task?"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Use the task panel.")

	require.Len(t, chatter.got, 2)
	require.Equal(t, "system", chatter.got[0].Role)
	require.Equal(t, "user", chatter.got[1].Role)
}

func TestChat_RejectsUnknownRole(t *testing.T) {
	handler := New(testLogger(), validator.New(), &fakeChatter{})

	rec := doRequest(t, handler, `{"messages":[{"role":"wizard","content":"hi"}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_EmptyMessages(t *testing.T) {
	handler := New(testLogger(), validator.New(), &fakeChatter{})

	rec := doRequest(t, handler, `{"messages":[]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_UpstreamFailureIsOpaque(t *testing.T) {
	chatter := &fakeChatter{err: errors.New("upstream: 429 rate limited")}
	handler := New(testLogger(), validator.New(), chatter)

	rec := doRequest(t, handler, `{"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "429")
}
