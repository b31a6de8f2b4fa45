package api

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer header.payload.signature", want: "header.payload.signature"},
		{name: "padded", header: "  Bearer a.b.c  ", want: "a.b.c"},
		{name: "missing", header: "", wantErr: errMissingAuthorization},
		{name: "blank", header: "   ", wantErr: errMissingAuthorization},
		{name: "wrong scheme", header: "Basic a.b.c", wantErr: errBadAuthorization},
		{name: "prefix only", header: "Bearer ", wantErr: errBadAuthorization},
		{name: "many periods", header: "Bearer " + strings.Repeat(".", 1000), wantErr: errBadAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bearerToken(tt.header)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScopeFromTokenHS256(t *testing.T) {
	secret := []byte("test-secret")
	sign := func(claims jwt.MapClaims, key []byte) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return signed
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "user-123",
			"aud": "api://aud",
			"iss": "https://issuer/",
			"exp": time.Now().Add(5 * time.Minute).Unix(),
			"nbf": time.Now().Add(-time.Minute).Unix(),
			"iat": time.Now().Add(-time.Minute).Unix(),
		}
	}
	auth := NewSharedSecretAuth(secret, "api://aud", "https://issuer/")

	scope, err := auth.ScopeFromAuthHeader("Bearer " + sign(valid(), secret))
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if scope != "user-123" {
		t.Fatalf("unexpected scope: %s", scope)
	}

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		key    []byte
	}{
		{name: "wrong secret", mutate: func(jwt.MapClaims) {}, key: []byte("other")},
		{name: "wrong audience", mutate: func(c jwt.MapClaims) { c["aud"] = "api://other" }, key: secret},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil/" }, key: secret},
		{name: "missing exp", mutate: func(c jwt.MapClaims) { delete(c, "exp") }, key: secret},
		{name: "not yet valid", mutate: func(c jwt.MapClaims) { c["nbf"] = time.Now().Add(time.Hour).Unix() }, key: secret},
		{name: "missing sub", mutate: func(c jwt.MapClaims) { delete(c, "sub") }, key: secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := valid()
			tt.mutate(claims)
			if _, err := auth.ScopeFromToken(sign(claims, tt.key)); err == nil {
				t.Fatalf("expected token to be rejected")
			}
		})
	}
}

func TestRS256AuthWithoutJWKS(t *testing.T) {
	auth := NewAuth(nil, "", "")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := token.SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ScopeFromToken(signed); err == nil {
		t.Fatalf("HS256 tokens must be rejected by the RS256 validator")
	}
}

func TestIssueTokenRoundTrip(t *testing.T) {
	secret := []byte("local-secret")
	tok, err := IssueToken(secret, "user-7", "prism", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	scope, err := NewSharedSecretAuth(secret, "prism", "").ScopeFromToken(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if scope != "user-7" {
		t.Fatalf("expected user-7, got %q", scope)
	}
	if _, err := NewSharedSecretAuth([]byte("other"), "prism", "").ScopeFromToken(tok); err == nil {
		t.Fatalf("expected wrong secret to be rejected")
	}
	if _, err := IssueToken(nil, "user-7", "", time.Hour); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := IssueToken(secret, "", "", time.Hour); err == nil {
		t.Fatalf("expected missing scope error")
	}
}
