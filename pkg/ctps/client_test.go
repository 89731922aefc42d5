package ctps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantOptOut bool
	}{
		{
			name:       "registered",
			status:     http.StatusOK,
			body:       `{"number": "+442079460110", "registered": true, "registry": "ctps"}`,
			wantOptOut: true,
		},
		{
			name:   "not_registered",
			status: http.StatusOK,
			body:   `{"number": "+442079460110", "registered": false}`,
		},
		{
			name:    "server_error",
			status:  http.StatusInternalServerError,
			body:    `{"error": "upstream timeout"}`,
			wantErr: true,
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/check", r.URL.Path)
				assert.Equal(t, "+442079460110", r.URL.Query().Get("number"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))
			optedOut, err := client.Lookup(context.Background(), "+442079460110")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOptOut, optedOut)
		})
	}
}
