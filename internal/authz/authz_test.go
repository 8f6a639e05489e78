package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenderock/focus-agency-server/internal/credential"
)

func TestGateWebPolicy(t *testing.T) {
	creds := credential.NewService("secret")
	gate := NewGate(creds, []string{"https://focustagency.com"}, false)

	tok, err := creds.MintWeb("u1", "lesson.mp4", time.Hour)
	require.NoError(t, err)

	t.Run("passes with matching referrer", func(t *testing.T) {
		_, err := gate.Decide(Web, tok, "https://focustagency.com/x", Binding{UserID: "u1", Filename: "lesson.mp4"})
		assert.NoError(t, err)
	})

	t.Run("fails with missing referrer", func(t *testing.T) {
		_, err := gate.Decide(Web, tok, "", Binding{UserID: "u1", Filename: "lesson.mp4"})
		assert.Error(t, err)
	})

	t.Run("fails with unlisted referrer", func(t *testing.T) {
		_, err := gate.Decide(Web, tok, "https://evil.example/x", Binding{UserID: "u1", Filename: "lesson.mp4"})
		assert.Error(t, err)
	})

	t.Run("fails on filename mismatch", func(t *testing.T) {
		_, err := gate.Decide(Web, tok, "https://focustagency.com/x", Binding{UserID: "u1", Filename: "other.mp4"})
		assert.Error(t, err)
	})

	t.Run("fails for missing credential", func(t *testing.T) {
		_, err := gate.Decide(Web, "", "https://focustagency.com/x", Binding{})
		var gerr *GateError
		require.ErrorAs(t, err, &gerr)
		assert.True(t, gerr.Missing)
	})
}

func TestGateMobilePolicyRejectsWebCredential(t *testing.T) {
	creds := credential.NewService("secret")
	gate := NewGate(creds, nil, false)

	webTok, err := creds.MintWeb("u1", "lesson.mp4", time.Hour)
	require.NoError(t, err)

	_, err = gate.Decide(Mobile, webTok, "", Binding{UserID: "u1"})
	assert.Error(t, err)
}

func TestGateMobilePolicyNoRefererRequired(t *testing.T) {
	creds := credential.NewService("secret")
	gate := NewGate(creds, nil, false)

	tok, err := creds.MintMobile("u1", "lesson.mp4", "v1", time.Hour)
	require.NoError(t, err)

	claims, err := gate.Decide(Mobile, tok, "", Binding{UserID: "u1", VideoID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "v1", claims.VideoID)
}

func TestGateDownloadPolicyRequireFilenameFlag(t *testing.T) {
	creds := credential.NewService("secret")

	t.Run("filename not required", func(t *testing.T) {
		gate := NewGate(creds, nil, false)
		tok, err := creds.MintDownloadV1("u1", "lesson.mp4", 0)
		require.NoError(t, err)

		_, err = gate.Decide(Download, tok, "", Binding{UserID: "u1", Filename: "other.mp4"})
		assert.NoError(t, err)
	})

	t.Run("filename required and mismatched", func(t *testing.T) {
		gate := NewGate(creds, nil, true)
		tok, err := creds.MintDownloadV1("u1", "lesson.mp4", 0)
		require.NoError(t, err)

		_, err = gate.Decide(Download, tok, "", Binding{UserID: "u1", Filename: "other.mp4"})
		assert.Error(t, err)
	})
}

func TestGateDownloadPolicyRejectsPlaybackCredential(t *testing.T) {
	creds := credential.NewService("secret")
	gate := NewGate(creds, nil, false)

	tok, err := creds.MintWeb("u1", "lesson.mp4", time.Hour)
	require.NoError(t, err)

	_, err = gate.Decide(Download, tok, "", Binding{UserID: "u1"})
	assert.Error(t, err)
}
