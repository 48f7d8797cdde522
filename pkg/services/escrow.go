package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/escrow"
	"github.com/sub0-labs/funding-oracle/pkg/models"
)

// defaultTrancheCount is the number of equal release stages when a project
// was submitted without milestones.
const defaultTrancheCount = 4

// EscrowService turns an approved aggregate into a deploy request and invokes
// the deployer. It gives no single-invocation guarantee itself; the
// orchestrator's guarded contract_address write does.
type EscrowService struct {
	deployer escrow.Deployer
	chain    string
	tranches int
	logger   *zap.Logger
}

// NewEscrowService creates an escrow service. chain and trancheCount fall back
// to the defaults when zero.
func NewEscrowService(deployer escrow.Deployer, chain string, trancheCount int, logger *zap.Logger) *EscrowService {
	if chain == "" {
		chain = models.DefaultChain
	}
	if trancheCount <= 0 {
		trancheCount = defaultTrancheCount
	}
	return &EscrowService{
		deployer: deployer,
		chain:    chain,
		tranches: trancheCount,
		logger:   logger.Named("escrow"),
	}
}

// Launch deploys the escrow contract for an approved project. The tranche
// plan follows the submitted milestones when present, otherwise the budget is
// split into equal stages.
func (s *EscrowService) Launch(ctx context.Context, sp *models.SponsoredProject, milestones []models.Milestone) (*escrow.DeployResult, error) {
	req := &escrow.DeployRequest{
		ProjectID:   sp.ProjectID,
		ProjectName: sp.Name,
		Chain:       s.chain,
		TotalRaw:    escrow.ToPlanck(sp.Budget),
		Tranches:    s.buildTranches(sp, milestones),
	}

	result, err := s.deployer.Deploy(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("escrow deployment for %s: %w", sp.ProjectID, err)
	}

	s.logger.Info("Escrow contract ready",
		zap.String("project_id", sp.ProjectID),
		zap.String("contract_address", result.ContractAddress),
		zap.String("chain", s.chain))
	return result, nil
}

func (s *EscrowService) buildTranches(sp *models.SponsoredProject, milestones []models.Milestone) []escrow.Tranche {
	if len(milestones) > 0 {
		tranches := make([]escrow.Tranche, 0, len(milestones))
		for _, m := range milestones {
			pct := 0
			if !sp.Budget.IsZero() {
				pct = int(m.Amount.Mul(decimal.NewFromInt(100)).Div(sp.Budget).Round(0).IntPart())
			}
			tranches = append(tranches, escrow.Tranche{
				Name:       m.Name,
				AmountRaw:  escrow.ToPlanck(m.Amount),
				Percentage: pct,
			})
		}
		return tranches
	}

	share := sp.Budget.Div(decimal.NewFromInt(int64(s.tranches)))
	tranches := make([]escrow.Tranche, 0, s.tranches)
	for i := range s.tranches {
		tranches = append(tranches, escrow.Tranche{
			Name:       fmt.Sprintf("Tranche %d", i+1),
			AmountRaw:  escrow.ToPlanck(share),
			Percentage: 100 / s.tranches,
		})
	}
	return tranches
}
