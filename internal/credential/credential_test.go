package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintWebVerifyRoundTrip(t *testing.T) {
	svc := NewService("test-secret")

	tok, err := svc.MintWeb("u1", "lesson.mp4", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "lesson.mp4", claims.Filename)
	assert.Equal(t, PlatformWeb, claims.Platform)
	assert.NotEmpty(t, claims.ID)
	assert.NotNil(t, claims.IssuedAt)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestMintMobileClaims(t *testing.T) {
	svc := NewService("test-secret")
	tok, err := svc.MintMobile("u1", "lesson.mp4", "v1", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, PlatformMobile, claims.Platform)
	assert.Equal(t, "v1", claims.VideoID)
}

func TestZeroTTLProducesExpiredCredential(t *testing.T) {
	svc := NewService("test-secret")
	tok, err := svc.MintWeb("u1", "lesson.mp4", 0)
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	svc := NewService("test-secret")
	other := NewService("other-secret")

	tok, err := svc.MintWeb("u1", "lesson.mp4", time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(tok)
	assert.Error(t, err)
}

func TestMintV2PlaybackRejectsDownloadPlatform(t *testing.T) {
	svc := NewService("test-secret")
	_, err := svc.MintV2Playback("u1", "t/c/m/l", PlatformDownload, time.Hour)
	assert.Error(t, err)
}

func TestMintV2DownloadRequiredFieldMatrix(t *testing.T) {
	svc := NewService("test-secret")

	_, err := svc.MintV2Download("u1", DownloadModule, 0, V2DownloadParams{}, false)
	require.Error(t, err)

	_, err = svc.MintV2Download("u1", DownloadModule, 0, V2DownloadParams{CourseID: "c1", ModuleID: "m1"}, false)
	require.NoError(t, err)

	_, err = svc.MintV2Download("u1", DownloadLesson, 0, V2DownloadParams{}, false)
	require.Error(t, err)

	tok, err := svc.MintV2Download("u1", DownloadLesson, 0, V2DownloadParams{Rel: "t/c/m/l"}, true)
	require.Error(t, err)
	assert.Empty(t, tok)

	tok, err = svc.MintV2Download("u1", DownloadLesson, 0, V2DownloadParams{Rel: "t/c/m/l", Filename: "l_lesson.mp4"}, true)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, DownloadLesson, claims.Type)
	assert.Equal(t, ActionDownload, claims.Action)
}

func TestMintV2DownloadDefaultsTTL(t *testing.T) {
	svc := NewService("test-secret")
	tok, err := svc.MintV2Download("u1", DownloadCourse, 0, V2DownloadParams{CourseID: "c1"}, false)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	remaining := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, 900*time.Second, remaining)
}
