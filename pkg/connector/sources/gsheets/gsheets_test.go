package gsheets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
)

func TestFeedSignerAppendsAltJSON(t *testing.T) {
	signer := &feedSigner{bearer: &auth.BearerSigner{}}
	account := &auth.Account{ID: "acc-1", Kind: auth.KindOAuth2, AccessToken: "tok"}

	req := clients.NewSignedRequest("GET", feedsBase+"/spreadsheets/private/full")
	signed, err := signer.Sign(context.Background(), account, req)
	require.NoError(t, err)

	assert.Equal(t, feedsBase+"/spreadsheets/private/full?alt=json", signed.URL)
	assert.Equal(t, "Bearer tok", signed.Header.Get("Authorization"))
}

func TestFeedSignerJoinsExistingQuery(t *testing.T) {
	signer := &feedSigner{bearer: &auth.BearerSigner{}}
	account := &auth.Account{ID: "acc-1", Kind: auth.KindOAuth2, AccessToken: "tok"}

	req := clients.NewSignedRequest("GET", feedsBase+"/list/abc/od6/private/full?max-results=500")
	signed, err := signer.Sign(context.Background(), account, req)
	require.NoError(t, err)

	assert.Equal(t, feedsBase+"/list/abc/od6/private/full?max-results=500&alt=json", signed.URL)
}

func TestFeedSignerLeavesCallerRequestUntouched(t *testing.T) {
	signer := &feedSigner{bearer: &auth.BearerSigner{}}
	account := &auth.Account{ID: "acc-1", Kind: auth.KindOAuth2, AccessToken: "tok"}

	req := clients.NewSignedRequest("GET", feedsBase+"/spreadsheets/private/full")
	_, err := signer.Sign(context.Background(), account, req)
	require.NoError(t, err)

	// The caller's descriptor is reused across pages; signing must work
	// on a copy.
	assert.Equal(t, feedsBase+"/spreadsheets/private/full", req.URL)
	assert.Empty(t, req.Header.Get("Authorization"))
}
