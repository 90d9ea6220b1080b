package identity

import (
	"context"
	"errors"
	"strings"
)

// TokenResolver resolves Blueline API tokens against the token store.
type TokenResolver struct {
	store *TokenStore
}

// NewTokenResolver creates a resolver backed by the token store.
func NewTokenResolver(store *TokenStore) *TokenResolver {
	return &TokenResolver{store: store}
}

// Resolve looks up the credential as an API token. Credentials without the
// token prefix are rejected fast so chained resolvers can try other schemes.
func (r *TokenResolver) Resolve(ctx context.Context, credential string) (*Principal, error) {
	if !strings.HasPrefix(credential, TokenPrefix) {
		return nil, ErrInvalidCredentials
	}

	token, err := r.store.LookupToken(ctx, credential)
	if err != nil {
		return nil, err
	}

	return &Principal{ID: token.ProfileID}, nil
}

// ChainResolver tries each resolver in order and returns the first success.
// Infrastructure errors stop the chain; bad credentials move to the next
// resolver.
type ChainResolver struct {
	resolvers []Resolver
}

// NewChainResolver creates a resolver chain.
func NewChainResolver(resolvers ...Resolver) *ChainResolver {
	return &ChainResolver{resolvers: resolvers}
}

func (r *ChainResolver) Resolve(ctx context.Context, credential string) (*Principal, error) {
	for _, resolver := range r.resolvers {
		principal, err := resolver.Resolve(ctx, credential)
		if err == nil {
			return principal, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
	}
	return nil, ErrInvalidCredentials
}
