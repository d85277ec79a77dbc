package oidc

// Package oidc verifies storefront credentials against an OIDC identity
// provider using the resource-owner password grant. Account management
// lives with the IdP; this adapter only answers "do these credentials
// belong to a user, and which one".

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/leafcart/storefront-api/internal/ports"
)

// Verifier implements ports.CredentialVerifier against an OIDC provider.
type Verifier struct {
	config   *oauth2.Config
	verifier *gooidc.IDTokenVerifier
}

var _ ports.CredentialVerifier = (*Verifier)(nil)

// VerifierConfig holds configuration for the credential verifier.
type VerifierConfig struct {
	ClientID     string
	ClientSecret string
	IssuerURL    string
	Scope        string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// NewVerifier creates a credential verifier, performing OIDC discovery
// against the issuer.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Verifier{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Verify exchanges the credentials for a token and extracts the numeric
// user ID from the verified ID token. Any grant failure is reported as a
// single opaque error; the caller maps it to a uniform unauthorized
// response.
func (v *Verifier) Verify(ctx context.Context, email, password string) (int64, error) {
	token, err := v.config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return 0, fmt.Errorf("password grant: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return 0, errors.New("token response carries no id_token")
	}

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return 0, fmt.Errorf("verify id token: %w", err)
	}

	return extractUserID(idToken)
}

// extractUserID reads the storefront user ID from the token claims. The
// IdP is configured to issue it as user_id; the subject is used as a
// numeric fallback.
func extractUserID(idToken *gooidc.IDToken) (int64, error) {
	var claims struct {
		UserID  int64  `json:"user_id"`
		Subject string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return 0, fmt.Errorf("parse claims: %w", err)
	}
	if claims.UserID > 0 {
		return claims.UserID, nil
	}
	if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	return 0, errors.New("token carries no usable user id")
}
