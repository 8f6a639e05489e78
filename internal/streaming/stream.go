package streaming

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zenderock/focus-agency-server/internal/apperr"
	"github.com/zenderock/focus-agency-server/internal/authz"
	"github.com/zenderock/focus-agency-server/internal/credential"
	"github.com/zenderock/focus-agency-server/internal/playlist"
	"github.com/zenderock/focus-agency-server/internal/storage"
	"github.com/zenderock/focus-agency-server/pkg/utils/filename"
)

const manifestFile = "output.m3u8"
const keyFile = "key"

// serveStoredFile streams path with the no-store headers invariant iv
// requires, erroring NotFound when absent.
func serveStoredFile(c echo.Context, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.NewNotFound("not found")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperr.NewNotFound("not found")
	}

	setNoStoreHeaders(c)
	if contentType != "" {
		c.Response().Header().Set("Content-Type", contentType)
	}
	http.ServeContent(c.Response(), c.Request(), filepath.Base(path), info.ModTime(), f)
	return nil
}

// HandleOriginal serves an uploaded source as an inline original.
// GET /videos-user/:user_id/:filename
func HandleOriginal(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Param("user_id")
		filename := storage.SafeFilename(c.Param("filename"))

		if _, ok := authorize(c, gate, authz.Web, authz.Binding{UserID: userID, Filename: filename}); !ok {
			return nil
		}

		videoID := storage.VideoIDFromFilename(filename)
		path := filepath.Join(layout.LegacyDir(storage.Uploads, userID, videoID), filename)
		return serveStoredFile(c, path, "")
	}
}

// HandleHLS serves an output.m3u8/segment/key file verbatim to a web caller.
// GET /hls/:user_id/:video_id/:file
func HandleHLS(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Param("user_id")
		videoID := storage.SafeFilename(c.Param("video_id"))
		file := storage.SafeFilename(c.Param("file"))

		if _, ok := authorize(c, gate, authz.Web, authz.Binding{UserID: userID, VideoID: videoID}); !ok {
			return nil
		}

		dir := layout.LegacyDir(storage.HLS, userID, videoID)
		return serveHLSFile(c, dir, file)
	}
}

// HandleHLSMobile serves segment/key verbatim but rewrites output.m3u8.
// GET /mobile/hls/:user_id/:video_id/:file
func HandleHLSMobile(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Param("user_id")
		videoID := storage.SafeFilename(c.Param("video_id"))
		file := storage.SafeFilename(c.Param("file"))

		claims, ok := authorize(c, gate, authz.Mobile, authz.Binding{UserID: userID, VideoID: videoID})
		if !ok {
			return nil
		}

		dir := layout.LegacyDir(storage.HLS, userID, videoID)
		if file == manifestFile {
			base := fmt.Sprintf("%s/mobile/hls/%s/%s", requestBaseURL(c), userID, videoID)
			return serveRewrittenManifest(c, dir, base, presentedCredential(c), claims)
		}
		return serveHLSFile(c, dir, file)
	}
}

// HandleHLS2 serves a v2 output.m3u8/segment/key file verbatim to a web
// caller.
// GET /hls2/:trainer/:course/:module/:lesson/:file
func HandleHLS2(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		rel, ok := relParam(c)
		if !ok {
			return nil
		}
		file := storage.SafeFilename(c.Param("file"))

		if _, ok := authorize(c, gate, authz.Web, authz.Binding{Rel: rel}); !ok {
			return nil
		}

		dir := layout.HierarchicalDir(storage.HLS, rel)
		return serveHLSFile(c, dir, file)
	}
}

// HandleHLS2Mobile serves segment/key verbatim for v2 paths, rewriting
// output.m3u8 for mobile players.
// GET /mobile/hls2/:trainer/:course/:module/:lesson/:file
func HandleHLS2Mobile(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		rel, ok := relParam(c)
		if !ok {
			return nil
		}
		file := storage.SafeFilename(c.Param("file"))

		claims, ok := authorize(c, gate, authz.Mobile, authz.Binding{Rel: rel})
		if !ok {
			return nil
		}

		dir := layout.HierarchicalDir(storage.HLS, rel)
		if file == manifestFile {
			base := fmt.Sprintf("%s/mobile/hls2/%s", requestBaseURL(c), rel)
			return serveRewrittenManifest(c, dir, base, presentedCredential(c), claims)
		}
		return serveHLSFile(c, dir, file)
	}
}

func relParam(c echo.Context) (string, bool) {
	rel := fmt.Sprintf("%s/%s/%s/%s", c.Param("trainer"), c.Param("course"), c.Param("module"), c.Param("lesson"))
	clean, err := storage.SafeRel(rel)
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rel"})
		return "", false
	}
	return clean, true
}

func serveHLSFile(c echo.Context, dir, file string) error {
	switch file {
	case manifestFile:
		return serveStoredFile(c, filepath.Join(dir, manifestFile), "application/x-mpegURL")
	case keyFile:
		return serveStoredFile(c, filepath.Join(dir, "enc.key"), "application/octet-stream")
	default:
		return serveStoredFile(c, filepath.Join(dir, file), "video/mp2t")
	}
}

func serveRewrittenManifest(c echo.Context, dir, base, token string, claims *credential.Claims) error {
	raw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return apperr.NewNotFound("manifest not found")
	}
	setNoStoreHeaders(c)
	c.Response().Header().Set("Content-Type", "application/x-mpegURL")
	return c.String(http.StatusOK, playlist.Rewrite(string(raw), base, token))
}

// HandleDownloadV1 serves an original as an attachment.
// GET /api/download/:user_id/:filename
func HandleDownloadV1(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Param("user_id")
		filename := storage.SafeFilename(c.Param("filename"))

		if _, ok := authorize(c, gate, authz.Download, authz.Binding{UserID: userID, Filename: filename}); !ok {
			return nil
		}

		videoID := storage.VideoIDFromFilename(filename)
		path := filepath.Join(layout.LegacyDir(storage.Originals, userID, videoID), filename)
		return serveAttachment(c, path, filename)
	}
}

// HandleDownloadV2Lesson serves an original lesson file as an attachment.
// GET /download2/:trainer/:course/:module/:lesson/:filename
func HandleDownloadV2Lesson(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		rel, ok := relParam(c)
		if !ok {
			return nil
		}
		filename := storage.SafeFilename(c.Param("filename"))

		binding := authz.Binding{Rel: rel, Filename: filename, Type: credential.DownloadLesson}
		if _, ok := authorize(c, gate, authz.Download, binding); !ok {
			return nil
		}

		path := filepath.Join(layout.HierarchicalDir(storage.Originals, rel), filename)
		return serveAttachment(c, path, filename)
	}
}

// HandleDownloadV2Course serves a course presentation as an attachment.
// GET /download2/course/:course_id/:filename
func HandleDownloadV2Course(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		courseID := c.Param("course_id")
		filename := storage.SafeFilename(c.Param("filename"))

		binding := authz.Binding{CourseID: courseID, Filename: filename, Type: credential.DownloadCourse}
		if _, ok := authorize(c, gate, authz.Download, binding); !ok {
			return nil
		}

		path := filepath.Join(layout.CoursePresentationDir(courseID), filename)
		return serveAttachment(c, path, filename)
	}
}

// HandleDownloadV2Module serves a module presentation as an attachment.
// GET /download2/module/:course_id/:module_id/:filename
func HandleDownloadV2Module(gate *authz.Gate, layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		courseID := c.Param("course_id")
		moduleID := c.Param("module_id")
		filename := storage.SafeFilename(c.Param("filename"))

		binding := authz.Binding{CourseID: courseID, ModuleID: moduleID, Filename: filename, Type: credential.DownloadModule}
		if _, ok := authorize(c, gate, authz.Download, binding); !ok {
			return nil
		}

		path := filepath.Join(layout.ModulePresentationDir(courseID, moduleID), filename)
		return serveAttachment(c, path, filename)
	}
}

func serveAttachment(c echo.Context, path, fname string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.NewNotFound("not found")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperr.NewNotFound("not found")
	}

	ext := filepath.Ext(fname)
	safeName := filename.Sanitize(strings.TrimSuffix(fname, ext), 120) + ext

	setNoStoreHeaders(c)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, safeName))
	http.ServeContent(c.Response(), c.Request(), fname, info.ModTime(), f)
	return nil
}
