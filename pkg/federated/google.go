// Package federated handles sign-in through external identity providers
// using OpenID Connect. The provider verifies ID tokens and yields a
// normalized profile for the account linker.
package federated

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/inkwell-io/inkwell/pkg/auth"
	inkwellconfig "github.com/inkwell-io/inkwell/pkg/config"
)

// GoogleProvider implements the OIDC authorization-code flow against
// Google's issuer. Verification of the ID token signature and audience
// happens before any claim is trusted.
type GoogleProvider struct {
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewGoogleProvider discovers the issuer's endpoints and builds the
// OAuth2 exchange configuration.
func NewGoogleProvider(ctx context.Context, cfg inkwellconfig.GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google client credentials are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("google redirect URL is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &GoogleProvider{
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
	}, nil
}

// AuthCodeURL returns the issuer's authorization URL bound to the given
// anti-forgery state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// InitiateLogin redirects the browser to the authorization endpoint.
func (p *GoogleProvider) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) {
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// Exchange trades an authorization code for a verified profile. The code
// is exchanged for tokens, the ID token is verified against the issuer's
// keys, and the identity claims are mapped to a FederatedProfile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*auth.FederatedProfile, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("missing subject in ID token")
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("missing email in ID token")
	}

	return &auth.FederatedProfile{
		Subject:    idToken.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
		PictureURL: claims.Picture,
	}, nil
}
