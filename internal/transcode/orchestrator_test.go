package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveKeyURLLegacyVsHierarchical(t *testing.T) {
	o := New(Config{HostBaseURL: "https://host", HLSRoot: "hls", Workers: 1})

	legacy := Job{HLSDir: "hls/u1/v1", UserID: "u1", VideoID: "v1"}
	assert.Equal(t, "https://host/hls/u1/v1/key", o.resolveKeyURL(legacy))

	hierarchical := Job{HLSDir: "hls/t1/c1/m1/l1"}
	assert.Equal(t, "https://host/hls2/t1/c1/m1/l1/key", o.resolveKeyURL(hierarchical))
}

func TestHLSPathPrefersRelContext(t *testing.T) {
	v1 := Job{UserID: "u1", VideoID: "v1"}
	assert.Equal(t, "/hls/u1/v1/output.m3u8", hlsPath(v1))

	v2 := Job{Context: map[string]string{"rel": "t1/c1/m1/l1"}}
	assert.Equal(t, "/hls2/t1/c1/m1/l1/output.m3u8", hlsPath(v2))
}

func TestEnqueueAssignsIDAndTracksStatus(t *testing.T) {
	o := New(Config{HostBaseURL: "https://host", HLSRoot: "hls", Workers: 1})

	id, err := o.Enqueue(t.Context(), Job{SourcePath: "x", HLSDir: "hls/u1/v1"})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	status, ok := o.Status(id)
	assert.True(t, ok)
	assert.Equal(t, StatusQueued, status)
}
