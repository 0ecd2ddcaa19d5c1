package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return key
}

func jwkFor(key *rsa.PrivateKey, kid string) JWKSKey {
	pub := &key.PublicKey
	return JWKSKey{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// jwksServer serves a JWKS document and counts fetches through *fetches.
func jwksServer(t *testing.T, fetches *int, keys func() []JWKSKey) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches != nil {
			*fetches++
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: keys()})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func discoveryServer(t *testing.T, doc map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverProvider(t *testing.T) {
	jwks := jwksServer(t, nil, func() []JWKSKey { return nil })
	srv := discoveryServer(t, map[string]interface{}{
		"issuer":            "https://idp.example.com",
		"token_endpoint":    "https://idp.example.com/token",
		"userinfo_endpoint": "https://idp.example.com/userinfo",
		"jwks_uri":          jwks.URL,
		"scopes_supported":  []string{"openid", "profile", "email"},
	})

	doc, err := DiscoverProvider(srv.URL)
	if err != nil {
		t.Fatalf("DiscoverProvider: %v", err)
	}
	if doc.Issuer != "https://idp.example.com" {
		t.Errorf("unexpected issuer: %s", doc.Issuer)
	}
	if doc.TokenEndpoint != "https://idp.example.com/token" {
		t.Errorf("unexpected token endpoint: %s", doc.TokenEndpoint)
	}
	if doc.JWKSURI != jwks.URL {
		t.Errorf("unexpected jwks_uri: %s", doc.JWKSURI)
	}
	if len(doc.ScopesSupported) != 3 {
		t.Errorf("expected 3 scopes, got %d", len(doc.ScopesSupported))
	}
}

func TestDiscoverProvider_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(http.NotFound))
	t.Cleanup(notFound.Close)
	noJWKS := discoveryServer(t, map[string]interface{}{
		"issuer":         "https://idp.example.com",
		"token_endpoint": "https://idp.example.com/token",
	})

	tests := []struct {
		name   string
		issuer string
	}{
		{"discovery endpoint 404", notFound.URL},
		{"unreachable issuer", "http://127.0.0.1:1"},
		{"missing jwks_uri", noJWKS.URL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DiscoverProvider(tt.issuer); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestJWKSCache_FetchAndHit(t *testing.T) {
	key := testRSAKey(t)
	fetches := 0
	srv := jwksServer(t, &fetches, func() []JWKSKey {
		return []JWKSKey{jwkFor(key, "key-1")}
	})

	cache := NewJWKSCache(srv.URL, 5*time.Minute)

	got, err := cache.GetKey("key-1")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if got.N.Cmp(key.PublicKey.N) != 0 || got.E != key.PublicKey.E {
		t.Error("fetched key does not match published key")
	}
	if fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetches)
	}

	// Within the TTL the cached copy is served.
	if _, err := cache.GetKey("key-1"); err != nil {
		t.Fatalf("GetKey cached: %v", err)
	}
	if fetches != 1 {
		t.Errorf("expected cached hit, got %d fetches", fetches)
	}
}

func TestJWKSCache_RefreshAfterTTL(t *testing.T) {
	key := testRSAKey(t)
	fetches := 0
	srv := jwksServer(t, &fetches, func() []JWKSKey {
		return []JWKSKey{jwkFor(key, "key-1")}
	})

	cache := NewJWKSCache(srv.URL, time.Millisecond)
	if _, err := cache.GetKey("key-1"); err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	first := fetches

	time.Sleep(5 * time.Millisecond)
	if _, err := cache.GetKey("key-1"); err != nil {
		t.Fatalf("GetKey after expiry: %v", err)
	}
	if fetches <= first {
		t.Error("expected a refetch after TTL expiry")
	}
}

func TestJWKSCache_KeyRotation(t *testing.T) {
	oldKey := testRSAKey(t)
	newKey := testRSAKey(t)
	fetches := 0
	srv := jwksServer(t, &fetches, func() []JWKSKey {
		if fetches <= 1 {
			return []JWKSKey{jwkFor(oldKey, "old")}
		}
		return []JWKSKey{jwkFor(oldKey, "old"), jwkFor(newKey, "new")}
	})

	cache := NewJWKSCache(srv.URL, time.Millisecond)
	if _, err := cache.GetKey("old"); err != nil {
		t.Fatalf("GetKey old: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	got, err := cache.GetKey("new")
	if err != nil {
		t.Fatalf("GetKey after rotation: %v", err)
	}
	if got.N.Cmp(newKey.PublicKey.N) != 0 {
		t.Error("rotated key does not match")
	}
}

func TestJWKSCache_UnknownKid(t *testing.T) {
	key := testRSAKey(t)
	srv := jwksServer(t, nil, func() []JWKSKey {
		return []JWKSKey{jwkFor(key, "present")}
	})

	cache := NewJWKSCache(srv.URL, 5*time.Minute)
	if _, err := cache.GetKey("absent"); err == nil {
		t.Error("expected error for unknown kid")
	}
}

func TestJWKSCache_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cache := NewJWKSCache(srv.URL, 5*time.Minute)
	if _, err := cache.GetKey("any"); err == nil {
		t.Error("expected error when JWKS endpoint fails")
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key := testRSAKey(t)
	pub, err := parseRSAPublicKey(jwkFor(key, "parse"))
	if err != nil {
		t.Fatalf("parseRSAPublicKey: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Error("parsed key does not match original")
	}
}

func TestParseRSAPublicKey_BadEncoding(t *testing.T) {
	valid := base64.RawURLEncoding.EncodeToString(big.NewInt(12345).Bytes())
	tests := []struct {
		name string
		jwk  JWKSKey
	}{
		{"invalid modulus", JWKSKey{Kty: "RSA", N: "!!!", E: "AQAB"}},
		{"invalid exponent", JWKSKey{Kty: "RSA", N: valid, E: "!!!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseRSAPublicKey(tt.jwk); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestJwksKeyFunc_NoKidHeader(t *testing.T) {
	srv := jwksServer(t, nil, func() []JWKSKey { return nil })

	keyFunc := jwksKeyFunc(srv.URL)
	_, err := keyFunc(&jwt.Token{Header: map[string]interface{}{}})
	if err == nil {
		t.Fatal("expected error for token without kid")
	}
	if !strings.Contains(err.Error(), "kid") {
		t.Errorf("unexpected error: %v", err)
	}
}
