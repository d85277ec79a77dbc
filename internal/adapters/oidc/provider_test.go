package oidc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVerifier_RequiredFields(t *testing.T) {
	ctx := context.Background()

	_, err := NewVerifier(ctx, VerifierConfig{IssuerURL: "https://idp.example.com"})
	assert.ErrorContains(t, err, "client ID")

	_, err = NewVerifier(ctx, VerifierConfig{ClientID: "storefront"})
	assert.ErrorContains(t, err, "issuer URL")
}
