package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

// LookupCache stores serialized lookup results.
type LookupCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UsernameForgetter drops a cached username resolution once the name is known to be stale.
type UsernameForgetter interface {
	Forget(ctx context.Context, username string) error
}

// CachedIdentityProvider memoizes username resolutions. Misses and cache failures fall
// through to the wrapped provider; only positive results are cached.
type CachedIdentityProvider struct {
	IdentityProvider
	Cache LookupCache
	TTL   time.Duration
}

func NewCachedIdentityProvider(inner IdentityProvider, cache LookupCache, ttl time.Duration) *CachedIdentityProvider {
	return &CachedIdentityProvider{IdentityProvider: inner, Cache: cache, TTL: ttl}
}

func usernameKey(username string) string {
	return "roblox:username:" + strings.ToLower(strings.TrimSpace(username))
}

func (p *CachedIdentityProvider) ResolveUsername(ctx context.Context, username string) (*RobloxUser, error) {
	key := usernameKey(username)
	if raw, ok, err := p.Cache.Get(ctx, key); err != nil {
		log.Printf("[CACHE] ⚠️ get %s: %v", key, err)
	} else if ok {
		var user RobloxUser
		if err := json.Unmarshal([]byte(raw), &user); err == nil && user.ID != 0 {
			return &user, nil
		}
	}

	user, err := p.IdentityProvider.ResolveUsername(ctx, username)
	if err != nil || user == nil {
		return user, err
	}
	if raw, err := json.Marshal(user); err == nil {
		if err := p.Cache.Set(ctx, key, string(raw), p.TTL); err != nil {
			log.Printf("[CACHE] ⚠️ set %s: %v", key, err)
		}
	}
	return user, nil
}

// Forget evicts username so the next lookup asks Roblox again.
func (p *CachedIdentityProvider) Forget(ctx context.Context, username string) error {
	return p.Cache.Delete(ctx, usernameKey(username))
}
