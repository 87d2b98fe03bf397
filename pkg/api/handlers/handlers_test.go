package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/astrapersonal/astra-api/pkg/ai/llm"
	apimiddleware "github.com/astrapersonal/astra-api/pkg/api/middleware"
	"github.com/astrapersonal/astra-api/pkg/auth"
	"github.com/astrapersonal/astra-api/pkg/geoip"
	"github.com/astrapersonal/astra-api/pkg/store/storetest"
	"github.com/astrapersonal/astra-api/pkg/supabase"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "handler-test-secret-with-at-least-32-characters"

// harness is an echo server behind the real identity middleware
type harness struct {
	t        *testing.T
	e        *echo.Echo
	db       *gorm.DB
	verifier *auth.Verifier
}

func newHarness(t *testing.T, revocations auth.RevocationChecker) *harness {
	t.Helper()
	verifier := auth.NewVerifier(testJWTSecret, revocations)
	e := echo.New()
	e.Use(apimiddleware.Identity(verifier))
	return &harness{t: t, e: e, db: storetest.Open(t), verifier: verifier}
}

func (h *harness) token(userID, email string) string {
	h.t.Helper()
	token, err := auth.IssueToken(testJWTSecret, auth.Identity{UserID: userID, Email: email, Role: "authenticated"}, time.Hour)
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(method, path, body, token string, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type fakeAuthProvider struct {
	signUp    *supabase.SignUpResult
	signUpErr error
	metadata  map[string]string
	session   *supabase.Session
	signInErr error
	loggedOut []string
}

func (f *fakeAuthProvider) SignUp(_ context.Context, _, _ string, metadata map[string]string) (*supabase.SignUpResult, error) {
	f.metadata = metadata
	return f.signUp, f.signUpErr
}

func (f *fakeAuthProvider) SignInWithPassword(context.Context, string, string) (*supabase.Session, error) {
	return f.session, f.signInErr
}

func (f *fakeAuthProvider) Refresh(_ context.Context, refreshToken string) (*supabase.Session, error) {
	if refreshToken != "valid-refresh" {
		return nil, supabase.ErrInvalidCredentials
	}
	return f.session, nil
}

func (f *fakeAuthProvider) Logout(_ context.Context, accessToken string) error {
	f.loggedOut = append(f.loggedOut, accessToken)
	return nil
}

type stubGeo struct{}

func (stubGeo) Lookup(context.Context, string) (*geoip.Location, error) {
	return &geoip.Location{City: "Roma", Region: "Lazio", CountryCode: "IT", Postal: "00184"}, nil
}

type stubLLM struct{ reply string }

func (s stubLLM) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Message: s.reply}, nil
}

func (s stubLLM) Complete(context.Context, string, ...string) (string, error) {
	return s.reply, nil
}

func assertStatus(t *testing.T, want int, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}

