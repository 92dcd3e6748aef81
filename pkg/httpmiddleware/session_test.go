package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionEcho() (http.Handler, *string) {
	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &got
}

func TestSession_IssuesCookie(t *testing.T) {
	inner, got := sessionEcho()
	handler := Session()(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	cookies := res.Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, "sid", c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	_, err := uuid.Parse(c.Value)
	require.NoError(t, err)
	assert.Equal(t, c.Value, *got, "handler should see the issued id")
}

func TestSession_ReusesValidCookie(t *testing.T) {
	inner, got := sessionEcho()
	handler := Session()(inner)

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: id})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Empty(t, res.Cookies(), "no new cookie for an existing session")
	assert.Equal(t, id, *got)
}

func TestSession_ReplacesGarbageCookie(t *testing.T) {
	inner, got := sessionEcho()
	handler := Session()(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "not-a-uuid"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "not-a-uuid", cookies[0].Value)
	assert.Equal(t, cookies[0].Value, *got)
}

func TestSessionIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, SessionIDFromContext(req.Context()))
}
