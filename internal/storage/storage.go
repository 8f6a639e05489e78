// Package storage resolves the filesystem layout described by the data
// model: four store roots, the legacy per-user/per-video layout, and the
// hierarchical trainer/course/module/lesson layout. It performs no I/O
// beyond the mkdir-p required to prepare an ingest path, and every
// user-supplied path component is passed through SafeFilename or SafeRel
// before it reaches the filesystem.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zenderock/focus-agency-server/internal/apperr"
)

// Root names one of the four store roots.
type Root int

const (
	Uploads Root = iota
	Originals
	HLS
	Presentations
)

// Layout holds the four configured store roots.
type Layout struct {
	UploadsRoot       string
	OriginalsRoot     string
	HLSRoot           string
	PresentationsRoot string
}

// NewLayout builds a Layout, defaulting any empty root to the conventional
// directory name used throughout spec.md §6.
func NewLayout(uploads, originals, hls, presentations string) Layout {
	return Layout{
		UploadsRoot:       defaultRoot(uploads, "uploads"),
		OriginalsRoot:     defaultRoot(originals, "originals"),
		HLSRoot:           defaultRoot(hls, "hls"),
		PresentationsRoot: defaultRoot(presentations, "presentation_videos"),
	}
}

func defaultRoot(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (l Layout) root(r Root) string {
	switch r {
	case Uploads:
		return l.UploadsRoot
	case Originals:
		return l.OriginalsRoot
	case HLS:
		return l.HLSRoot
	case Presentations:
		return l.PresentationsRoot
	default:
		return ""
	}
}

// SafeFilename strips path separators, NUL bytes, and leading dots from s.
// It is idempotent: SafeFilename(SafeFilename(x)) == SafeFilename(x).
func SafeFilename(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	s = strings.TrimLeft(s, ".")
	return s
}

// SafeRel validates a v2 "rel" path (trainer/course/module/lesson), checking
// each segment with SafeFilename and rejecting empty segments, absolute
// paths, and traversal sequences.
func SafeRel(rel string) (string, error) {
	if rel == "" {
		return "", apperr.NewBadRequest("rel must not be empty")
	}
	if strings.HasPrefix(rel, "/") {
		return "", apperr.NewBadRequest("rel must not be absolute")
	}
	segments := strings.Split(rel, "/")
	clean := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return "", apperr.NewBadRequest("rel must not contain empty segments")
		}
		if seg == ".." || seg == "." {
			return "", apperr.NewBadRequest("rel must not contain traversal segments")
		}
		safe := SafeFilename(seg)
		if safe != seg || safe == "" {
			return "", apperr.NewBadRequest("rel segment contains unsafe characters")
		}
		clean = append(clean, safe)
	}
	return strings.Join(clean, "/"), nil
}

// LegacyDir returns <root>/<user_id>/<video_id> under the given store root.
func (l Layout) LegacyDir(r Root, userID, videoID string) string {
	return filepath.Join(l.root(r), SafeFilename(userID), SafeFilename(videoID))
}

// HierarchicalDir returns <root>/<rel> under the given store root, where rel
// is a validated, slash-joined trainer/course/module/lesson path.
func (l Layout) HierarchicalDir(r Root, rel string) string {
	return filepath.Join(l.root(r), filepath.FromSlash(rel))
}

// LessonFilename returns the canonical v2 lesson filename for an extension
// (without the leading dot).
func LessonFilename(lessonID, ext string) string {
	return fmt.Sprintf("%s_lesson.%s", SafeFilename(lessonID), strings.ToLower(ext))
}

// CoursePresentationDir returns presentation_videos/courses/<course_id>.
func (l Layout) CoursePresentationDir(courseID string) string {
	return filepath.Join(l.PresentationsRoot, "courses", SafeFilename(courseID))
}

// ModulePresentationDir returns presentation_videos/modules/<course_id>/<module_id>.
func (l Layout) ModulePresentationDir(courseID, moduleID string) string {
	return filepath.Join(l.PresentationsRoot, "modules", SafeFilename(courseID), SafeFilename(moduleID))
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// VideoIDFromFilename returns the v1 video_id for an uploaded source:
// the basename without extension.
func VideoIDFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AllowedExtensions are the upload extensions spec.md §4.E permits,
// case-insensitive.
var AllowedExtensions = map[string]struct{}{
	"mp4": {}, "avi": {}, "mov": {}, "wmv": {}, "flv": {},
}

// IsAllowedExtension reports whether ext (with or without a leading dot) is
// one of the permitted upload extensions.
func IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	_, ok := AllowedExtensions[ext]
	return ok
}

// MaxUploadBytes is the upload size ceiling (100 MiB) from spec.md §4.E.
const MaxUploadBytes = 100 * 1024 * 1024
