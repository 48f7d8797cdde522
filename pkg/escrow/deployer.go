// Package escrow provides a client for the escrow deployer service, the
// collaborator that instantiates the on-chain funding contract for an
// approved project. The deployer itself gives no single-invocation guarantee;
// the orchestrator's null-check-then-set on contract_address does.
package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for a contract deployment.
const DefaultTimeout = 2 * time.Minute

// planckPerUnit converts a budget into the chain's smallest unit.
var planckPerUnit = decimal.New(1, 12) // 10^12

// Tranche is one release stage of the escrow contract.
type Tranche struct {
	Name       string `json:"name"`
	AmountRaw  string `json:"amount"`  // planck units, stringified to avoid precision loss
	Percentage int    `json:"percent"` // share of the total, 0-100
}

// DeployRequest describes the contract to instantiate.
type DeployRequest struct {
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Chain       string    `json:"chain"`
	TotalRaw    string    `json:"total_amount"` // planck units
	Tranches    []Tranche `json:"milestones"`
}

// DeployResult is the deployer's response.
type DeployResult struct {
	ContractAddress string `json:"contract_address"`
	BlockHash       string `json:"block_hash,omitempty"`
}

// Deployer is the collaborator contract consumed by the escrow coordinator.
type Deployer interface {
	Deploy(ctx context.Context, req *DeployRequest) (*DeployResult, error)
}

// ToPlanck converts a decimal budget into the chain's smallest unit,
// stringified for the wire.
func ToPlanck(amount decimal.Decimal) string {
	return amount.Mul(planckPerUnit).Truncate(0).String()
}

// Config holds deployer connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPDeployer deploys contracts through the escrow deployer HTTP service.
type HTTPDeployer struct {
	cfg        Config
	httpClient *http.Client
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewHTTPDeployer creates a deployer client for the given service.
func NewHTTPDeployer(cfg Config, logger *zap.Logger) (*HTTPDeployer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("deployer base url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &HTTPDeployer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("escrow"),
	}, nil
}

// Ensure HTTPDeployer implements Deployer at compile time.
var _ Deployer = (*HTTPDeployer)(nil)

// Deploy instantiates the escrow contract and returns its address. Transient
// deployer failures are retried; the caller is responsible for not invoking
// this twice for the same project.
func (d *HTTPDeployer) Deploy(ctx context.Context, req *DeployRequest) (*DeployResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deploy request: %w", err)
	}

	d.logger.Info("Deploying escrow contract",
		zap.String("project_id", req.ProjectID),
		zap.String("chain", req.Chain),
		zap.Int("tranches", len(req.Tranches)))

	result, err := retry.DoWithResult(ctx, d.retryCfg, func() (*DeployResult, error) {
		return d.doDeploy(ctx, body)
	})
	if err != nil {
		return nil, err
	}
	if result.ContractAddress == "" {
		return nil, fmt.Errorf("deployer returned empty contract address")
	}

	d.logger.Info("Escrow contract deployed",
		zap.String("project_id", req.ProjectID),
		zap.String("contract_address", result.ContractAddress))
	return result, nil
}

func (d *HTTPDeployer) doDeploy(ctx context.Context, body []byte) (*DeployResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.cfg.BaseURL+"/deploy", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call deployer: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deployer returned status %d: %s", resp.StatusCode, respBody)
	}

	var result DeployResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode deploy response: %w", err)
	}
	return &result, nil
}
