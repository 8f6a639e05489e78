package streaming

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"github.com/zenderock/focus-agency-server/internal/apperr"
	"github.com/zenderock/focus-agency-server/internal/storage"
	"github.com/zenderock/focus-agency-server/internal/transcode"
)

// UploadDefaults holds the fallback lifecycle-tracking callback URLs used
// when a caller's upload request doesn't supply its own.
type UploadDefaults struct {
	SuccessURL string
	ErrorURL   string
}

func callbackURLs(c echo.Context, defaults UploadDefaults) (success, errURL string) {
	success = c.FormValue("success_url")
	if success == "" {
		success = defaults.SuccessURL
	}
	errURL = c.FormValue("error_url")
	if errURL == "" {
		errURL = defaults.ErrorURL
	}
	return
}

// receiveUpload validates and saves an incoming multipart file to dest,
// returning the extension (lowercase, no dot) it was saved under.
func receiveUpload(c echo.Context, dest string) (string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", apperr.NewBadRequest("file is required")
	}
	if fileHeader.Size > storage.MaxUploadBytes {
		return "", apperr.NewBadRequest("file exceeds maximum upload size")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if !storage.IsAllowedExtension(ext) {
		return "", apperr.NewBadRequest("file extension not allowed")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", apperr.NewInternal(err)
	}
	defer src.Close()

	if err := storage.EnsureDir(filepath.Dir(dest)); err != nil {
		return "", apperr.NewInternal(err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", apperr.NewInternal(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", apperr.NewInternal(err)
	}

	slog.Info("received upload", "dest", dest, "size", humanize.Bytes(uint64(fileHeader.Size)))
	return ext, nil
}

// HandleUpload accepts a v1 source upload: video_id is the basename without
// extension, paths use the legacy layout.
// POST /upload
func HandleUpload(layout storage.Layout, orch *transcode.Orchestrator, defaults UploadDefaults) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireParam(c.FormValue("user_id"), "user_id")
		if err != nil {
			return err
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.NewBadRequest("file is required")
		}
		videoID := storage.VideoIDFromFilename(fileHeader.Filename)
		filename := storage.SafeFilename(fileHeader.Filename)

		uploadPath := filepath.Join(layout.LegacyDir(storage.Uploads, userID, videoID), filename)
		if _, err := receiveUpload(c, uploadPath); err != nil {
			return err
		}

		originalPath := filepath.Join(layout.LegacyDir(storage.Originals, userID, videoID), filename)
		if err := copyFile(uploadPath, originalPath); err != nil {
			return apperr.NewInternal(err)
		}

		hlsDir := layout.LegacyDir(storage.HLS, userID, videoID)
		successURL, errorURL := callbackURLs(c, defaults)
		taskID, err := orch.Enqueue(c.Request().Context(), transcode.Job{
			SourcePath: uploadPath,
			HLSDir:     hlsDir,
			SuccessURL: successURL,
			ErrorURL:   errorURL,
			UserID:     userID,
			VideoID:    videoID,
		})
		if err != nil {
			return apperr.NewInternal(err)
		}

		return c.JSON(http.StatusAccepted, echo.Map{"task_id": taskID.String(), "video_id": videoID})
	}
}

// HandleUploadLesson accepts a v2 lesson upload, renaming the file to
// <lesson_id>_lesson.<ext> and copying it into both originals/<rel> and
// uploads/<rel> before enqueuing conversion.
// POST /upload/lesson
func HandleUploadLesson(layout storage.Layout, orch *transcode.Orchestrator, defaults UploadDefaults) echo.HandlerFunc {
	return func(c echo.Context) error {
		trainerID, err := requireParam(c.FormValue("trainer_id"), "trainer_id")
		if err != nil {
			return err
		}
		courseID, err := requireParam(c.FormValue("course_id"), "course_id")
		if err != nil {
			return err
		}
		moduleID, err := requireParam(c.FormValue("module_id"), "module_id")
		if err != nil {
			return err
		}
		lessonID, err := requireParam(c.FormValue("lesson_id"), "lesson_id")
		if err != nil {
			return err
		}
		userID := c.FormValue("user_id")

		rel, err := storage.SafeRel(fmt.Sprintf("%s/%s/%s/%s", trainerID, courseID, moduleID, lessonID))
		if err != nil {
			return err
		}

		uploadDir := layout.HierarchicalDir(storage.Uploads, rel)
		// inspect the uploaded name's extension before receiving, so the
		// file is saved directly under its canonical lesson filename.
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.NewBadRequest("file is required")
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
		if !storage.IsAllowedExtension(ext) {
			return apperr.NewBadRequest("file extension not allowed")
		}
		lessonFilename := storage.LessonFilename(lessonID, ext)

		uploadPath := filepath.Join(uploadDir, lessonFilename)
		if _, err := receiveUpload(c, uploadPath); err != nil {
			return err
		}

		originalPath := filepath.Join(layout.HierarchicalDir(storage.Originals, rel), lessonFilename)
		if err := copyFile(uploadPath, originalPath); err != nil {
			return apperr.NewInternal(err)
		}

		hlsDir := layout.HierarchicalDir(storage.HLS, rel)
		successURL, errorURL := callbackURLs(c, defaults)
		taskID, err := orch.Enqueue(c.Request().Context(), transcode.Job{
			SourcePath: uploadPath,
			HLSDir:     hlsDir,
			SuccessURL: successURL,
			ErrorURL:   errorURL,
			UserID:     userID,
			Context:    map[string]string{"rel": rel},
		})
		if err != nil {
			return apperr.NewInternal(err)
		}

		return c.JSON(http.StatusAccepted, echo.Map{"task_id": taskID.String(), "rel": rel})
	}
}

// HandleUploadPresentationCourse accepts a course presentation upload.
// Presentations are stored unencrypted, so no transcode job is enqueued;
// they are served as attachments by the download-credential-gated
// /download2/course and /download2/module routes.
// POST /upload_presentation/course/:course_id
func HandleUploadPresentationCourse(layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		courseID, err := requireParam(c.Param("course_id"), "course_id")
		if err != nil {
			return err
		}
		dir := layout.CoursePresentationDir(courseID)
		return receivePresentation(c, dir)
	}
}

// HandleUploadPresentationModule accepts a module presentation upload.
// POST /upload_presentation/module/:course_id/:module_id
func HandleUploadPresentationModule(layout storage.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		courseID, err := requireParam(c.Param("course_id"), "course_id")
		if err != nil {
			return err
		}
		moduleID, err := requireParam(c.Param("module_id"), "module_id")
		if err != nil {
			return err
		}
		dir := layout.ModulePresentationDir(courseID, moduleID)
		return receivePresentation(c, dir)
	}
}

func receivePresentation(c echo.Context, dir string) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperr.NewBadRequest("file is required")
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if !storage.IsAllowedExtension(ext) {
		return apperr.NewBadRequest("file extension not allowed")
	}

	dest := filepath.Join(dir, "presentation."+ext)
	if _, err := receiveUpload(c, dest); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"path": dest})
}

func copyFile(src, dst string) error {
	if err := storage.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
