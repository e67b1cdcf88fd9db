package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndParseSession(t *testing.T) {
	token, err := MintSession("acct-1", "dev@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("MintSession() error = %v", err)
	}

	claims, err := ParseClaims(token, "secret")
	if err != nil {
		t.Fatalf("ParseClaims() error = %v", err)
	}
	if claims.AccountID != "acct-1" || claims.Email != "dev@example.com" {
		t.Errorf("ParseClaims() = %+v", claims)
	}
}

func TestParseClaims_Rejects(t *testing.T) {
	valid, _ := MintSession("acct-1", "dev@example.com", "secret", time.Hour)
	expired, _ := MintSession("acct-1", "dev@example.com", "secret", -time.Minute)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AccountID: "acct-1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "other"},
		{"expired", expired, "secret"},
		{"alg none", unsigned, "secret"},
		{"garbage", "not-a-token", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseClaims(tt.token, tt.secret); err == nil {
				t.Error("ParseClaims() expected error")
			}
		})
	}
}

func TestCookies(t *testing.T) {
	c := SessionCookieFor("tok", time.Hour, true)
	if !c.HttpOnly || !c.Secure || c.MaxAge != 3600 {
		t.Errorf("SessionCookieFor() = %+v", c)
	}
	if cleared := ClearCookie(StateCookie, false); cleared.MaxAge >= 0 || cleared.Name != StateCookie {
		t.Errorf("ClearCookie() = %+v", cleared)
	}
}
