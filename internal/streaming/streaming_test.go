package streaming

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenderock/focus-agency-server/internal/authz"
	"github.com/zenderock/focus-agency-server/internal/credential"
	"github.com/zenderock/focus-agency-server/internal/storage"
)

func newEchoCtx(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleGetVideoTokenMintsWebCredential(t *testing.T) {
	creds := credential.NewService("secret")
	c, rec := newEchoCtx(http.MethodGet, "/api/get-video-token/u1/lesson.mp4")
	c.SetParamNames("user_id", "filename")
	c.SetParamValues("u1", "lesson.mp4")

	require.NoError(t, HandleGetVideoToken(creds, time.Hour)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])

	claims, err := creds.Verify(body["token"])
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestHandleGetVideoTokenV2RejectsBadRel(t *testing.T) {
	creds := credential.NewService("secret")
	c, _ := newEchoCtx(http.MethodGet, "/api/get-video-token/v2?user_id=u1&rel=../../etc&platform=web")

	err := HandleGetVideoTokenV2(creds, time.Hour)(c)
	assert.Error(t, err)
}

func TestHandleOriginalServesBytesWhenAuthorized(t *testing.T) {
	dir := t.TempDir()
	layout := storage.NewLayout(dir+"/uploads", dir+"/originals", dir+"/hls", dir+"/presentations")

	uploadDir := layout.LegacyDir(storage.Uploads, "u1", "lesson")
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "lesson.mp4"), []byte("video-bytes"), 0o644))

	creds := credential.NewService("secret")
	gate := authz.NewGate(creds, []string{"https://focustagency.com"}, false)
	tok, err := creds.MintWeb("u1", "lesson.mp4", time.Hour)
	require.NoError(t, err)

	c, rec := newEchoCtx(http.MethodGet, "/videos-user/u1/lesson.mp4?token="+tok)
	c.SetParamNames("user_id", "filename")
	c.SetParamValues("u1", "lesson.mp4")
	c.Request().Header.Set("Referer", "https://focustagency.com/x")

	require.NoError(t, HandleOriginal(gate, layout)(c))
	assert.Equal(t, "video-bytes", rec.Body.String())
	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))
}

func TestHandleOriginalRejectsWithoutReferer(t *testing.T) {
	dir := t.TempDir()
	layout := storage.NewLayout(dir+"/uploads", dir+"/originals", dir+"/hls", dir+"/presentations")

	creds := credential.NewService("secret")
	gate := authz.NewGate(creds, []string{"https://focustagency.com"}, false)
	tok, err := creds.MintWeb("u1", "lesson.mp4", time.Hour)
	require.NoError(t, err)

	c, rec := newEchoCtx(http.MethodGet, "/videos-user/u1/lesson.mp4?token="+tok)
	c.SetParamNames("user_id", "filename")
	c.SetParamValues("u1", "lesson.mp4")

	require.NoError(t, HandleOriginal(gate, layout)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleDownloadV1SetsAttachmentDisposition(t *testing.T) {
	dir := t.TempDir()
	layout := storage.NewLayout(dir+"/uploads", dir+"/originals", dir+"/hls", dir+"/presentations")

	origDir := layout.LegacyDir(storage.Originals, "u1", "lesson")
	require.NoError(t, os.MkdirAll(origDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(origDir, "lesson.mp4"), []byte("bytes"), 0o644))

	creds := credential.NewService("secret")
	gate := authz.NewGate(creds, nil, false)
	tok, err := creds.MintDownloadV1("u1", "lesson.mp4", 0)
	require.NoError(t, err)

	c, rec := newEchoCtx(http.MethodGet, "/api/download/u1/lesson.mp4?token="+tok)
	c.SetParamNames("user_id", "filename")
	c.SetParamValues("u1", "lesson.mp4")

	require.NoError(t, HandleDownloadV1(gate, layout)(c))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}
