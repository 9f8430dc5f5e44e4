package openid

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/socialauth/internal/backend"
)

const testKid = "k1"

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

// newJWKSServer publica la clave pública en formato JWKS.
func newJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"keys":[{"kty":"RSA","alg":"RS256","kid":%q,"n":%q,"e":"AQAB"}]}`, testKid, n)
	}))
}

func signAssertion(t *testing.T, key *rsa.PrivateKey, kid string, claims jwtv5.MapClaims) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims() jwtv5.MapClaims {
	return jwtv5.MapClaims{
		"iss":   "https://accounts.google.com",
		"sub":   "1234567890",
		"email": "jane@corp.test",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerify_AcceptsSignedAssertion(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, &key.PublicKey)
	defer srv.Close()

	v := NewJWTVerifier("id_token", srv.URL, []string{"https://accounts.google.com"})
	attrs, err := v.Verify(context.Background(), backend.CallbackParams{
		"id_token": signAssertion(t, key, testKid, validClaims()),
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if attrs["email"] != "jane@corp.test" {
		t.Fatalf("email = %v", attrs["email"])
	}
	if attrs["sub"] != "1234567890" {
		t.Fatalf("sub = %v", attrs["sub"])
	}
}

func TestVerify_ConcurrentColdStart(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, &key.PublicKey)
	defer srv.Close()

	v := NewJWTVerifier("id_token", srv.URL, nil)
	assertion := signAssertion(t, key, testKid, validClaims())

	// Varias requests antes de poblar el cache JWKS: todas deben verificar.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), backend.CallbackParams{"id_token": assertion})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent verify: %v", err)
		}
	}
}

func TestVerify_RejectsUnexpectedAlg(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, &key.PublicKey)
	defer srv.Close()

	hs := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, validClaims())
	hs.Header["kid"] = testKid
	assertion, err := hs.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign hs256: %v", err)
	}

	v := NewJWTVerifier("id_token", srv.URL, nil)
	if _, err := v.Verify(context.Background(), backend.CallbackParams{"id_token": assertion}); err == nil {
		t.Fatalf("HS256 assertion must be rejected")
	} else if !strings.Contains(err.Error(), "alg") {
		t.Fatalf("rejection should name the alg: %v", err)
	}
}

func TestVerify_RejectsForeignIssuer(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, &key.PublicKey)
	defer srv.Close()

	claims := validClaims()
	claims["iss"] = "https://evil.test"

	v := NewJWTVerifier("id_token", srv.URL, []string{"https://accounts.google.com"})
	if _, err := v.Verify(context.Background(), backend.CallbackParams{
		"id_token": signAssertion(t, key, testKid, claims),
	}); err == nil {
		t.Fatalf("foreign issuer must be rejected")
	}
}

func TestVerify_RejectsExpiredAssertion(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, &key.PublicKey)
	defer srv.Close()

	claims := validClaims()
	claims["exp"] = time.Now().Add(-2 * time.Hour).Unix()

	v := NewJWTVerifier("id_token", srv.URL, nil)
	if _, err := v.Verify(context.Background(), backend.CallbackParams{
		"id_token": signAssertion(t, key, testKid, claims),
	}); err == nil {
		t.Fatalf("expired assertion must be rejected")
	}
}

func TestVerify_RejectsUnknownKid(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, &key.PublicKey)
	defer srv.Close()

	v := NewJWTVerifier("id_token", srv.URL, nil)
	if _, err := v.Verify(context.Background(), backend.CallbackParams{
		"id_token": signAssertion(t, key, "ghost-kid", validClaims()),
	}); err == nil {
		t.Fatalf("unknown kid must be rejected")
	}
}

func TestVerify_MissingParameter(t *testing.T) {
	v := NewJWTVerifier("id_token", "https://provider.test/jwks", nil)
	if _, err := v.Verify(context.Background(), backend.CallbackParams{}); err == nil {
		t.Fatalf("missing assertion parameter must fail before fetching keys")
	}
}
