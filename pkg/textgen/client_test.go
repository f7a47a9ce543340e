package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ReturnsFirstCandidateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "suggest a price", req.Contents[0].Parts[0].Text)

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" About $18 "},{"text":"per seat"}]}}]}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, APIKey: "secret", Model: "test-model"})
	got, err := c.Generate(context.Background(), "suggest a price")
	require.NoError(t, err)
	assert.Equal(t, "About $18 per seat", got)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{}`, nil},
		{"malformed body", http.StatusOK, `not json`, nil},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, ErrEmptyCompletion},
		{"api error", http.StatusOK, `{"error":{"code":429,"message":"quota"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(Config{Endpoint: srv.URL, APIKey: "k", Model: "m"}).Generate(context.Background(), "p")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	_, err := New(Config{Endpoint: "http://localhost"}).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
