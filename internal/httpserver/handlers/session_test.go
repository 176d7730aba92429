package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartmark/smartmark/internal/auth"
	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/httpserver/mw"
	"github.com/smartmark/smartmark/internal/logger"
)

func TestSessionEchoesIdentity(t *testing.T) {
	ident := auth.Identity{ID: "user-1", Email: "ada@example.com"}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req = req.WithContext(mw.WithIdentity(req.Context(), ident))
	rec := httptest.NewRecorder()

	Session(deps.Deps{Logger: logger.Nop()})(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got auth.Identity
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got != ident {
		t.Errorf("session = %+v, want %+v", got, ident)
	}
}

func TestSessionWithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()

	Session(deps.Deps{Logger: logger.Nop()})(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMintTokenDisabledAnswers404(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/session/token", strings.NewReader(`{"id":"user-1"}`))
	rec := httptest.NewRecorder()

	MintToken(deps.Deps{Logger: logger.Nop(), DevTokens: false})(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when dev tokens are disabled", rec.Code)
	}
}

func TestMintTokenIssuesValidToken(t *testing.T) {
	d := deps.Deps{
		Logger:    logger.Nop(),
		DevTokens: true,
		JWTSecret: testSecret,
		JWTIssuer: testIssuer,
		TokenTTL:  time.Hour,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/session/token",
		strings.NewReader(`{"id":"user-1","email":"ada@example.com"}`))
	rec := httptest.NewRecorder()

	MintToken(d)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	ident, err := auth.NewVerifier(testSecret, testIssuer).Validate(resp.Token)
	if err != nil {
		t.Fatalf("minted token did not validate: %v", err)
	}
	if ident.ID != "user-1" || ident.Email != "ada@example.com" {
		t.Errorf("identity from minted token = %+v", ident)
	}
}

func TestMintTokenRequiresID(t *testing.T) {
	d := deps.Deps{Logger: logger.Nop(), DevTokens: true, JWTSecret: testSecret, JWTIssuer: testIssuer, TokenTTL: time.Hour}

	req := httptest.NewRequest(http.MethodPost, "/api/session/token", strings.NewReader(`{"email":"ada@example.com"}`))
	rec := httptest.NewRecorder()

	MintToken(d)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
