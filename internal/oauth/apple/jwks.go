package apple

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	jwksTTL = 24 * time.Hour
	// refetchGuard limits how often an unknown kid can trigger a fetch.
	refetchGuard = 30 * time.Second
	fetchedKey   = "__fetched"
	// fetchTimeout bounds the shared fetch, which outlives any one caller.
	fetchTimeout = 10 * time.Second
)

var errKeyNotFound = errors.New("apple: signing key not found")

// keySet caches Apple's RSA signing keys by kid.
type keySet struct {
	url    string
	client *http.Client
	cache  *gocache.Cache
	group  singleflight.Group
}

func newKeySet(url string, client *http.Client) *keySet {
	return &keySet{
		url:    url,
		client: client,
		cache:  gocache.New(jwksTTL, time.Hour),
	}
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// key returns the public key for kid, fetching the set on a miss. Concurrent
// misses share one fetch.
func (s *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if v, ok := s.cache.Get(kid); ok {
		return v.(*rsa.PublicKey), nil
	}
	if _, recent := s.cache.Get(fetchedKey); recent {
		return nil, fmt.Errorf("%w: %s", errKeyNotFound, kid)
	}
	ch := s.group.DoChan("jwks", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return nil, s.fetch(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}
	if v, ok := s.cache.Get(kid); ok {
		return v.(*rsa.PublicKey), nil
	}
	return nil, fmt.Errorf("%w: %s", errKeyNotFound, kid)
}

func (s *keySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("apple: fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("apple: fetch jwks: status %d", resp.StatusCode)
	}
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return fmt.Errorf("apple: decode jwks: %w", err)
	}
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			continue
		}
		s.cache.Set(k.Kid, pub, gocache.DefaultExpiration)
	}
	s.cache.Set(fetchedKey, true, refetchGuard)
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e == 0 {
		e = 65537
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
