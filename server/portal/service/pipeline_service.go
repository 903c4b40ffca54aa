package service

import (
	"context"
	"errors"
	"math"
	"time"

	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
)

var ErrDealNotFound = errors.New("deal not found")

// Scoring weights over the four factors, in fixed proportion. Each
// factor is clamped to [0, 10]; the weighted sum scales to 0-100.
const (
	weightCallScore  = 0.40
	weightEngagement = 0.25
	weightBudgetFit  = 0.20
	weightRecency    = 0.15

	tierAThreshold = 75
	tierBThreshold = 45
)

type dealRepository interface {
	Create(ctx context.Context, deal domain.Deal) (domain.Deal, error)
	GetByID(ctx context.Context, dealID string) (domain.Deal, error)
	ListActive(ctx context.Context, limit, offset int) ([]domain.Deal, error)
	UpdateScoring(ctx context.Context, deal domain.Deal) error
	SetSnoozedUntil(ctx context.Context, dealID string, until *time.Time) error
}

type PipelineService struct {
	deals dealRepository
}

func NewPipelineService(deals dealRepository) *PipelineService {
	return &PipelineService{deals: deals}
}

type DealFactors struct {
	CallScore  int `json:"call_score"`
	Engagement int `json:"engagement"`
	BudgetFit  int `json:"budget_fit"`
	Recency    int `json:"recency"`
}

// ScoreDeal computes the weighted-sum score and the predicted tier.
func ScoreDeal(f DealFactors) (float64, string) {
	score := (weightCallScore*clampFactor(f.CallScore) +
		weightEngagement*clampFactor(f.Engagement) +
		weightBudgetFit*clampFactor(f.BudgetFit) +
		weightRecency*clampFactor(f.Recency)) * 10
	score = math.Round(score*100) / 100

	switch {
	case score >= tierAThreshold:
		return score, "A"
	case score >= tierBThreshold:
		return score, "B"
	default:
		return score, "C"
	}
}

func clampFactor(v int) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return float64(v)
}

func (s *PipelineService) CreateDeal(ctx context.Context, deal domain.Deal) (domain.Deal, error) {
	if deal.Stage == "" {
		deal.Stage = domain.DealStageLead
	}
	deal.Score, deal.PredictedTier = ScoreDeal(DealFactors{
		CallScore:  deal.CallScore,
		Engagement: deal.Engagement,
		BudgetFit:  deal.BudgetFit,
		Recency:    deal.Recency,
	})
	return s.deals.Create(ctx, deal)
}

func (s *PipelineService) GetDeal(ctx context.Context, dealID string) (domain.Deal, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if errors.Is(err, repository.ErrNotFound) {
		return deal, ErrDealNotFound
	}
	return deal, err
}

func (s *PipelineService) ListActiveDeals(ctx context.Context, limit, offset int) ([]domain.Deal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.deals.ListActive(ctx, limit, offset)
}

// Rescore replaces the deal's factors and recomputes score and tier.
func (s *PipelineService) Rescore(ctx context.Context, dealID string, stage domain.DealStage, factors DealFactors) (domain.Deal, error) {
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return deal, err
	}
	if stage != "" {
		deal.Stage = stage
	}
	deal.CallScore = factors.CallScore
	deal.Engagement = factors.Engagement
	deal.BudgetFit = factors.BudgetFit
	deal.Recency = factors.Recency
	deal.Score, deal.PredictedTier = ScoreDeal(factors)

	if err := s.deals.UpdateScoring(ctx, deal); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return deal, ErrDealNotFound
		}
		return deal, err
	}
	return deal, nil
}

func (s *PipelineService) Snooze(ctx context.Context, dealID string, until time.Time) error {
	if !until.After(time.Now()) {
		return errors.New("snooze time must be in the future")
	}
	err := s.deals.SetSnoozedUntil(ctx, dealID, &until)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDealNotFound
	}
	return err
}

func (s *PipelineService) Unsnooze(ctx context.Context, dealID string) error {
	err := s.deals.SetSnoozedUntil(ctx, dealID, nil)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDealNotFound
	}
	return err
}
