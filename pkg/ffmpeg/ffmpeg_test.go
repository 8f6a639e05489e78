package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandBuild(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		output   string
		opts     []Option
		wantArgs []string
	}{
		{
			name:   "stream copy",
			input:  "input.mkv",
			output: "output.mp4",
			opts:   []Option{CopyAll},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "input.mkv",
				"-c", "copy",
				"output.mp4",
			},
		},
		{
			name:   "hls encrypted transcode",
			input:  "uploads/u1/v1/lesson.mp4",
			output: "hls/u1/v1/output.m3u8",
			opts: []Option{
				VideoCodec("h264"),
				AudioCodec("aac"),
				ExtraArgs(
					"-hls_time", "10",
					"-hls_list_size", "0",
					"-hls_key_info_file", "hls/u1/v1/enc.keyinfo",
					"-hls_segment_filename", "hls/u1/v1/segment_%03d.ts",
				),
			},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "uploads/u1/v1/lesson.mp4",
				"-c:v", "h264",
				"-c:a", "aac",
				"-hls_time", "10",
				"-hls_list_size", "0",
				"-hls_key_info_file", "hls/u1/v1/enc.keyinfo",
				"-hls_segment_filename", "hls/u1/v1/segment_%03d.ts",
				"hls/u1/v1/output.m3u8",
			},
		},
		{
			name:   "map stream",
			input:  "input.mp4",
			output: "video_only.mp4",
			opts:   []Option{MapStream("0:v:0"), CopyAll},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "input.mp4",
				"-map", "0:v:0",
				"-c", "copy",
				"video_only.mp4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCommand(tt.input, tt.output, tt.opts...).Build()
			assert.Equal(t, tt.wantArgs, got)
		})
	}
}

func TestErrorMessageTrimsToLastLines(t *testing.T) {
	err := &Error{
		Args:   []string{"-i", "in.mp4", "out.mp4"},
		Stderr: "line1\nline2\nline3\nline4\nline5",
		Err:    assertError{},
	}

	msg := err.Error()
	assert.Contains(t, msg, "line3")
	assert.Contains(t, msg, "line4")
	assert.Contains(t, msg, "line5")
	assert.NotContains(t, msg, "line1")
}

type assertError struct{}

func (assertError) Error() string { return "exit status 1" }
