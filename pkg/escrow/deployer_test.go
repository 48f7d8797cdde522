package escrow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToPlanck(t *testing.T) {
	tests := []struct {
		amount   string
		expected string
	}{
		{"1", "1000000000000"},
		{"5000", "5000000000000000"},
		{"0.5", "500000000000"},
		{"1250.25", "1250250000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := ToPlanck(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func newTestDeployer(t *testing.T, srv *httptest.Server) *HTTPDeployer {
	t.Helper()
	d, err := NewHTTPDeployer(Config{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)
	d.retryCfg.MaxRetries = 0
	return d
}

func TestHTTPDeployer_Deploy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/deploy", r.URL.Path)

		var req DeployRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "demo-1", req.ProjectID)
		assert.Equal(t, "asset_hub", req.Chain)
		assert.Equal(t, "5000000000000000", req.TotalRaw)
		require.Len(t, req.Tranches, 1)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(DeployResult{
			ContractAddress: "0xabc123",
			BlockHash:       "0xblock1",
		}))
	}))
	defer srv.Close()

	d := newTestDeployer(t, srv)
	result, err := d.Deploy(context.Background(), &DeployRequest{
		ProjectID:   "demo-1",
		ProjectName: "Demo",
		Chain:       "asset_hub",
		TotalRaw:    ToPlanck(decimal.RequireFromString("5000")),
		Tranches: []Tranche{
			{Name: "MVP", AmountRaw: ToPlanck(decimal.RequireFromString("5000")), Percentage: 100},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", result.ContractAddress)
}

func TestHTTPDeployer_Deploy_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "node unreachable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newTestDeployer(t, srv)
	_, err := d.Deploy(context.Background(), &DeployRequest{ProjectID: "demo-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPDeployer_Deploy_EmptyAddressRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	d := newTestDeployer(t, srv)
	_, err := d.Deploy(context.Background(), &DeployRequest{ProjectID: "demo-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty contract address")
}
