package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-orchestrator/internal/common/config"
	stderrors "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
)

func testPinClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(config.IPFSConfig{
		BaseURL: baseURL,
		APIKey:  "pin-key",
		Gateway: "https://gateway.example.com/",
		Timeout: 2000,
	}, logger.NewTestLogger(t))
}

func TestUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		assert.Equal(t, "Bearer pin-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "art.png", header.Filename)

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, data)

		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmFileHash"})
	}))
	defer srv.Close()

	result, err := testPinClient(t, srv.URL).UploadFile(context.Background(), "art.png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "QmFileHash", result.CID)
	assert.Equal(t, "https://gateway.example.com/ipfs/QmFileHash", result.URL)
}

func TestUploadJSONWrapsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content, ok := body["pinataContent"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Sunset Study", content["title"])

		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmJsonHash"})
	}))
	defer srv.Close()

	result, err := testPinClient(t, srv.URL).UploadJSON(context.Background(), map[string]string{"title": "Sunset Study"})
	require.NoError(t, err)
	assert.Equal(t, "QmJsonHash", result.CID)
}

func TestUploadFileServerErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testPinClient(t, srv.URL).UploadFile(context.Background(), "art.png", []byte{1})
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeUploadFailed, stderrors.CodeOf(err))
}

func TestUploadRejectsEmptyHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": ""})
	}))
	defer srv.Close()

	_, err := testPinClient(t, srv.URL).UploadJSON(context.Background(), map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeUploadFailed, stderrors.CodeOf(err))
}
