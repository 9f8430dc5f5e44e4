package openid

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/socialauth/internal/backend"
)

// JWTVerifier valida respuestas firmadas con forma de JWT (RS256) contra el
// JWKS publicado por el proveedor. Cubre proveedores que migraron su capa
// OpenID a assertions firmadas; para OpenID 2.0 clásico se inyecta otro
// Verifier.
type JWTVerifier struct {
	// Param es el parámetro del callback que trae la assertion.
	Param string
	// JWKSURL es el endpoint de claves del proveedor.
	JWKSURL string
	// Issuers aceptados en el claim iss.
	Issuers []string

	http *http.Client

	mu     sync.RWMutex
	keys   *jwks
	keysAt time.Time
	etag   string
}

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// NewJWTVerifier crea el verificador con un client con timeout de 10s.
func NewJWTVerifier(param, jwksURL string, issuers []string) *JWTVerifier {
	if param == "" {
		param = "id_token"
	}
	return &JWTVerifier{
		Param:   param,
		JWKSURL: jwksURL,
		Issuers: issuers,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *JWTVerifier) fetchKeys(ctx context.Context) (*jwks, error) {
	v.mu.RLock()
	cached := v.keys
	age := time.Since(v.keysAt)
	etag := v.etag
	v.mu.RUnlock()
	if cached != nil && age < time.Hour {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.JWKSURL, nil)
	if err != nil {
		return nil, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		v.mu.Lock()
		out := v.keys
		v.keysAt = time.Now()
		v.mu.Unlock()
		return out, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("jwks http %d", resp.StatusCode)
	}
	var jj jwks
	if err := json.NewDecoder(resp.Body).Decode(&jj); err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.keys = &jj
	v.keysAt = time.Now()
	v.etag = resp.Header.Get("ETag")
	v.mu.Unlock()
	return &jj, nil
}

func (v *JWTVerifier) rsaKeyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range keys.Keys {
		if k.Kid == kid && strings.EqualFold(k.Kty, "RSA") {
			nb, err := base64.RawURLEncoding.DecodeString(k.N)
			if err != nil {
				return nil, err
			}
			eb, err := base64.RawURLEncoding.DecodeString(k.E)
			if err != nil {
				return nil, err
			}
			n := new(big.Int).SetBytes(nb)
			e := 65537
			if len(eb) > 0 {
				e = 0
				for _, b := range eb {
					e = (e << 8) | int(b)
				}
			}
			return &rsa.PublicKey{N: n, E: e}, nil
		}
	}
	return nil, errors.New("kid not found")
}

// Verify valida firma, iss y expiración. Retorna los claims como atributos.
func (v *JWTVerifier) Verify(ctx context.Context, params backend.CallbackParams) (map[string]any, error) {
	assertion := params.Get(v.Param)
	if assertion == "" {
		return nil, fmt.Errorf("missing %s parameter", v.Param)
	}

	parts := strings.Split(assertion, ".")
	if len(parts) != 3 {
		return nil, errors.New("bad jwt format")
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return nil, err
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("unexpected alg: %s", header.Alg)
	}

	key, err := v.rsaKeyForKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}
	tok, err := jwtv5.Parse(assertion,
		func(t *jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{"RS256"}),
	)
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid assertion")
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims type")
	}

	if len(v.Issuers) > 0 {
		iss, _ := claims["iss"].(string)
		found := false
		for _, want := range v.Issuers {
			if iss == want {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("bad iss: %s", iss)
		}
	}
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(time.Now().Add(-30 * time.Second)) {
			return nil, errors.New("assertion expired")
		}
	}

	return map[string]any(claims), nil
}
