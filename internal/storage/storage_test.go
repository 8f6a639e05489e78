package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFilenameIdempotent(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"..\\..\\windows\\system32",
		"...hidden.mp4",
		"normal_file.mp4",
		"\x00null\x00byte.mp4",
		"",
	}
	for _, c := range cases {
		once := SafeFilename(c)
		twice := SafeFilename(once)
		assert.Equal(t, once, twice, "SafeFilename must be idempotent for %q", c)
	}
}

func TestSafeFilenameStripsTraversal(t *testing.T) {
	assert.Equal(t, "etcpasswd", SafeFilename("../../etc/passwd"))
	assert.Equal(t, "hidden.mp4", SafeFilename("...hidden.mp4"))
	assert.Equal(t, "lesson.mp4", SafeFilename("lesson.mp4"))
}

func TestSafeRel(t *testing.T) {
	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr bool
	}{
		{name: "clean four segments", rel: "t1/c1/m1/l1", want: "t1/c1/m1/l1"},
		{name: "rejects traversal", rel: "t1/../c1/m1/l1", wantErr: true},
		{name: "rejects absolute", rel: "/t1/c1/m1/l1", wantErr: true},
		{name: "rejects empty segment", rel: "t1//m1/l1", wantErr: true},
		{name: "rejects empty string", rel: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeRel(tt.rel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVideoIDFromFilename(t *testing.T) {
	assert.Equal(t, "lesson", VideoIDFromFilename("lesson.mp4"))
	assert.Equal(t, "lesson.v2", VideoIDFromFilename("lesson.v2.mov"))
}

func TestIsAllowedExtension(t *testing.T) {
	assert.True(t, IsAllowedExtension("MP4"))
	assert.True(t, IsAllowedExtension(".mov"))
	assert.False(t, IsAllowedExtension("mkv"))
}

func TestLessonFilename(t *testing.T) {
	assert.Equal(t, "l1_lesson.mp4", LessonFilename("l1", "MP4"))
}
