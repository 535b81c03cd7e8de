package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/grocerly/internal/errs"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func makeJWT(t *testing.T, sub string, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
		Audience:  jwt.ClaimStrings{"authenticated"},
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestVerify_Valid(t *testing.T) {
	t.Parallel()
	v := NewVerifier(testKey)
	sub := uuid.Must(uuid.NewV4())

	id, claims, err := v.Verify(makeJWT(t, sub.String(), testKey, jwt.SigningMethodHS256, time.Now().Add(-time.Minute), 10*time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != sub || claims.Subject != sub.String() {
		t.Fatalf("subject mismatch: %s vs %s", id, sub)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	v := NewVerifier(testKey)
	tok := makeJWT(t, uuid.Must(uuid.NewV4()).String(), testKey, jwt.SigningMethodHS256, time.Now().Add(-2*time.Hour), time.Hour)

	_, _, err := v.Verify(tok)
	if !errors.Is(err, ErrExpired) || !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want expired unauthorized, got %v", err)
	}
}

func TestVerify_LeewayAllowsSmallClockSkew(t *testing.T) {
	t.Parallel()
	v := NewVerifier(testKey)
	tok := makeJWT(t, uuid.Must(uuid.NewV4()).String(), testKey, jwt.SigningMethodHS256, time.Now().Add(10*time.Second), time.Hour)

	if _, _, err := v.Verify(tok); err != nil {
		t.Fatalf("nbf within leeway must pass: %v", err)
	}
}

func TestVerify_Rejections(t *testing.T) {
	t.Parallel()
	v := NewVerifier(testKey)
	now := time.Now()
	sub := uuid.Must(uuid.NewV4()).String()

	cases := map[string]string{
		"missing subject": makeJWT(t, "", testKey, jwt.SigningMethodHS256, now, time.Hour),
		"bad subject":     makeJWT(t, "not-a-uuid", testKey, jwt.SigningMethodHS256, now, time.Hour),
		"wrong alg":       makeJWT(t, sub, testKey, jwt.SigningMethodHS384, now, time.Hour),
		"wrong key":       makeJWT(t, sub, []byte("another-secret-another-secret-xx"), jwt.SigningMethodHS256, now, time.Hour),
		"garbage":         "this-is-not-a-jwt",
		"future nbf":      makeJWT(t, sub, testKey, jwt.SigningMethodHS256, now.Add(time.Hour), time.Hour),
	}
	for name, tok := range cases {
		if _, _, err := v.Verify(tok); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("%s: want unauthorized, got %v", name, err)
		}
	}
}

func TestIssue_RoundTrip(t *testing.T) {
	t.Parallel()
	sub := uuid.Must(uuid.NewV4())
	tok, err := Issue(testKey, sub, "a@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, claims, err := NewVerifier(testKey).Verify(tok)
	if err != nil || id != sub || claims.Email != "a@example.com" {
		t.Fatalf("roundtrip: id=%s claims=%+v err=%v", id, claims, err)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"  bearer   tok  ", "tok", true},
		{"Basic foo", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := BearerToken(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("BearerToken(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestVerify_MissingSubjectSentinel(t *testing.T) {
	t.Parallel()
	tok := makeJWT(t, "", testKey, jwt.SigningMethodHS256, time.Now(), time.Hour)
	if _, _, err := NewVerifier(testKey).Verify(tok); !errors.Is(err, ErrNoSubject) {
		t.Fatalf("want ErrNoSubject, got %v", err)
	}
}
