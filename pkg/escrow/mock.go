package escrow

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockDeployer is a configurable mock for testing escrow deployment.
// Set DeployFunc to control behavior; by default it returns a unique
// synthetic contract address per call.
type MockDeployer struct {
	// DeployFunc is called when Deploy is invoked. If nil, a synthetic
	// address is returned.
	DeployFunc func(ctx context.Context, req *DeployRequest) (*DeployResult, error)

	// DeployCalls counts invocations, atomically for concurrent tests.
	DeployCalls atomic.Int64
}

// NewMockDeployer creates a new mock deployer.
func NewMockDeployer() *MockDeployer {
	return &MockDeployer{}
}

// Ensure MockDeployer implements Deployer at compile time.
var _ Deployer = (*MockDeployer)(nil)

// Deploy implements Deployer.
func (m *MockDeployer) Deploy(ctx context.Context, req *DeployRequest) (*DeployResult, error) {
	n := m.DeployCalls.Add(1)
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, req)
	}
	return &DeployResult{
		ContractAddress: fmt.Sprintf("0xcontract%04d", n),
	}, nil
}
