package streaming

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zenderock/focus-agency-server/internal/credential"
	"github.com/zenderock/focus-agency-server/internal/storage"
)

// HandleGetVideoToken mints a web playback credential.
// GET /api/get-video-token/:user_id/:filename
func HandleGetVideoToken(creds *credential.Service, tokenExpiry time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireParam(c.Param("user_id"), "user_id")
		if err != nil {
			return err
		}
		filename, err := requireParam(c.Param("filename"), "filename")
		if err != nil {
			return err
		}

		tok, err := creds.MintWeb(userID, filename, tokenExpiry)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"token": tok})
	}
}

// HandleGetVideoTokenMobile mints a mobile playback credential plus the
// absolute playlist URL the player should fetch.
// GET /api/get-video-token/mobile/:user_id/:filename/:video_id
func HandleGetVideoTokenMobile(creds *credential.Service, tokenExpiry time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireParam(c.Param("user_id"), "user_id")
		if err != nil {
			return err
		}
		filename, err := requireParam(c.Param("filename"), "filename")
		if err != nil {
			return err
		}
		videoID, err := requireParam(c.Param("video_id"), "video_id")
		if err != nil {
			return err
		}

		tok, err := creds.MintMobile(userID, filename, videoID, tokenExpiry)
		if err != nil {
			return err
		}

		playlistURL := fmt.Sprintf("%s/mobile/hls/%s/%s/output.m3u8?token=%s", requestBaseURL(c), userID, videoID, tok)
		return c.JSON(http.StatusOK, echo.Map{"token": tok, "playlist_url": playlistURL})
	}
}

// HandleGetVideoTokenV2 mints a v2 playback credential plus the absolute
// playlist URL.
// GET /api/get-video-token/v2?user_id,rel,platform,ttl
func HandleGetVideoTokenV2(creds *credential.Service, tokenExpiry time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireParam(c.QueryParam("user_id"), "user_id")
		if err != nil {
			return err
		}
		rel, err := requireParam(c.QueryParam("rel"), "rel")
		if err != nil {
			return err
		}
		cleanRel, err := storage.SafeRel(rel)
		if err != nil {
			return err
		}
		platform := credential.Platform(c.QueryParam("platform"))
		ttl := parseTTL(c.QueryParam("ttl"), tokenExpiry)

		tok, err := creds.MintV2Playback(userID, cleanRel, platform, ttl)
		if err != nil {
			return err
		}

		prefix := "hls2"
		if platform == credential.PlatformMobile {
			prefix = "mobile/hls2"
		}
		playlistURL := fmt.Sprintf("%s/%s/%s/output.m3u8?token=%s", requestBaseURL(c), prefix, cleanRel, tok)
		return c.JSON(http.StatusOK, echo.Map{"token": tok, "playlist_url": playlistURL})
	}
}

// HandleGetDownloadToken mints a v1 download credential.
// GET /api/get-download-token/:user_id/:filename
func HandleGetDownloadToken(creds *credential.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireParam(c.Param("user_id"), "user_id")
		if err != nil {
			return err
		}
		filename, err := requireParam(c.Param("filename"), "filename")
		if err != nil {
			return err
		}

		tok, err := creds.MintDownloadV1(userID, filename, 0)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"token": tok})
	}
}

// HandleGetDownloadTokenV2 mints a v2 download credential. The response
// carries a full download_url when filename is supplied, or a
// download_base_url otherwise; in the lesson-without-filename case, if the
// originals folder contains exactly one file, the response also includes
// the lowercased extension.
// GET /api/get-download-token/v2?user_id,type,[filename,rel,course_id,module_id]
func HandleGetDownloadTokenV2(creds *credential.Service, layout storage.Layout, requireFilename bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireParam(c.QueryParam("user_id"), "user_id")
		if err != nil {
			return err
		}
		dtype := credential.DownloadType(c.QueryParam("type"))

		params := credential.V2DownloadParams{
			Filename: c.QueryParam("filename"),
			CourseID: c.QueryParam("course_id"),
			ModuleID: c.QueryParam("module_id"),
		}
		if rel := c.QueryParam("rel"); rel != "" {
			cleanRel, err := storage.SafeRel(rel)
			if err != nil {
				return err
			}
			params.Rel = cleanRel
		}

		tok, err := creds.MintV2Download(userID, dtype, 0, params, requireFilename)
		if err != nil {
			return err
		}

		resp := echo.Map{"token": tok}
		base := requestBaseURL(c)

		switch dtype {
		case credential.DownloadLesson:
			if params.Filename != "" {
				resp["download_url"] = fmt.Sprintf("%s/download2/%s/%s?token=%s", base, params.Rel, params.Filename, tok)
			} else {
				resp["download_base_url"] = fmt.Sprintf("%s/download2/%s?token=%s", base, params.Rel, tok)
				if ext, ok := soleOriginalExtension(layout, params.Rel); ok {
					resp["extension"] = ext
				}
			}
		case credential.DownloadCourse:
			if params.Filename != "" {
				resp["download_url"] = fmt.Sprintf("%s/download2/course/%s/%s?token=%s", base, params.CourseID, params.Filename, tok)
			} else {
				resp["download_base_url"] = fmt.Sprintf("%s/download2/course/%s?token=%s", base, params.CourseID, tok)
			}
		case credential.DownloadModule:
			if params.Filename != "" {
				resp["download_url"] = fmt.Sprintf("%s/download2/module/%s/%s/%s?token=%s", base, params.CourseID, params.ModuleID, params.Filename, tok)
			} else {
				resp["download_base_url"] = fmt.Sprintf("%s/download2/module/%s/%s?token=%s", base, params.CourseID, params.ModuleID, tok)
			}
		}

		return c.JSON(http.StatusOK, resp)
	}
}

// soleOriginalExtension reports the lowercased extension (with leading dot)
// of the single file in originals/<rel>, when exactly one file is present.
func soleOriginalExtension(layout storage.Layout, rel string) (string, bool) {
	dir := layout.HierarchicalDir(storage.Originals, rel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var files []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e)
		}
	}
	if len(files) != 1 {
		return "", false
	}
	return strings.ToLower(filepath.Ext(files[0].Name())), true
}

func parseTTL(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
