package transcode

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostSuccessCarriesBearerAndPayload(t *testing.T) {
	var gotAuth string
	var gotBody SuccessPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewCallbackClient("cb-token")
	client.PostSuccess(t.Context(), srv.URL, SuccessPayload{
		Status:  "success",
		UserID:  "u1",
		VideoID: "v1",
		HLSPath: "/hls/u1/v1/output.m3u8",
		Message: "transcode succeeded",
	})

	assert.Equal(t, "Bearer cb-token", gotAuth)
	assert.Equal(t, "success", gotBody.Status)
	assert.Equal(t, "u1", gotBody.UserID)
}

func TestPostErrorSwallowsDeliveryFailure(t *testing.T) {
	client := NewCallbackClient("")
	assert.NotPanics(t, func() {
		client.PostError(t.Context(), "http://127.0.0.1:0/unreachable", ErrorPayload{Status: "error"})
	})
}

func TestPostSkipsEmptyURL(t *testing.T) {
	client := NewCallbackClient("")
	assert.NotPanics(t, func() {
		client.PostSuccess(t.Context(), "", SuccessPayload{})
	})
}
