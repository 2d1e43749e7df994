package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crowdfunding/internal/crowdfund"
	"crowdfunding/internal/infrastructure/lock"
	"crowdfunding/internal/logger"
	"crowdfunding/internal/metrics"
)

// ErrBusy 拿不到项目锁
var ErrBusy = errors.New("系统繁忙，请稍后重试")

type CrowdfundService struct {
	ledger  *crowdfund.Ledger
	locker  lock.Locker
	metrics *metrics.Metrics
}

func NewCrowdfundService(ledger *crowdfund.Ledger, locker lock.Locker, m *metrics.Metrics) *CrowdfundService {
	return &CrowdfundService{
		ledger:  ledger,
		locker:  locker,
		metrics: m,
	}
}

type InitiateRequest struct {
	ProjectID  string `json:"project_id" binding:"required"`
	Owner      string `json:"owner" binding:"required"`
	PotAccount string `json:"pot_account" binding:"required"`
	TargetFund uint64 `json:"target_fund"`
	MinFund    uint64 `json:"min_fund"`
}

type FundRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Amount    uint64 `json:"amount"`
}

type StopRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
}

type ProjectResponse struct {
	ProjectID    string   `json:"project_id"`
	Owner        string   `json:"owner"`
	PotAccount   string   `json:"pot_account"`
	TargetFund   uint64   `json:"target_fund"`
	MinFund      uint64   `json:"min_fund"`
	TotalFund    uint64   `json:"total_fund"`
	Contributors []string `json:"contributors"`
	Status       string   `json:"status"`
}

func (s *CrowdfundService) Initiate(ctx context.Context, caller string, req *InitiateRequest) (*ProjectResponse, error) {
	spec := crowdfund.ProjectSpec{
		Owner:      crowdfund.AccountID(req.Owner),
		PotAccount: crowdfund.AccountID(req.PotAccount),
		TargetFund: crowdfund.Balance(req.TargetFund),
		MinFund:    crowdfund.Balance(req.MinFund),
	}
	return s.transition(ctx, "initiate", req.ProjectID, func(id crowdfund.ProjectID) (*crowdfund.Project, error) {
		p, err := s.ledger.Initiate(ctx, crowdfund.AccountID(caller), id, spec)
		if err == nil {
			logger.Info("[Crowdfund] 发起众筹: project=%s, owner=%s, pot=%s, target=%d, min=%d",
				req.ProjectID, req.Owner, req.PotAccount, req.TargetFund, req.MinFund)
		}
		return p, err
	})
}

func (s *CrowdfundService) Fund(ctx context.Context, caller string, req *FundRequest) (*ProjectResponse, error) {
	return s.transition(ctx, "fund", req.ProjectID, func(id crowdfund.ProjectID) (*crowdfund.Project, error) {
		p, err := s.ledger.Fund(ctx, crowdfund.AccountID(caller), id, crowdfund.Balance(req.Amount))
		if err != nil {
			return nil, err
		}

		s.metrics.Contributed.Add(float64(req.Amount))
		logger.Info("[Crowdfund] 出资成功: project=%s, contributor=%s, amount=%d", req.ProjectID, caller, req.Amount)
		if !p.IsActive() {
			s.metrics.Settlements.WithLabelValues("target").Inc()
			logger.Info("[Crowdfund] 达到目标金额，已结算给发起人: project=%s, owner=%s", req.ProjectID, p.Owner)
		}
		return p, nil
	})
}

func (s *CrowdfundService) Stop(ctx context.Context, caller string, req *StopRequest) (*ProjectResponse, error) {
	return s.transition(ctx, "stop", req.ProjectID, func(id crowdfund.ProjectID) (*crowdfund.Project, error) {
		p, err := s.ledger.Stop(ctx, crowdfund.AccountID(caller), id)
		if err != nil {
			return nil, err
		}

		s.metrics.Settlements.WithLabelValues("stop").Inc()
		logger.Info("[Crowdfund] 众筹已停止: project=%s, owner=%s", req.ProjectID, caller)
		return p, nil
	})
}

func (s *CrowdfundService) GetProject(ctx context.Context, projectID string) (*ProjectResponse, error) {
	id, err := crowdfund.ParseProjectID(projectID)
	if err != nil {
		return nil, err
	}
	p, err := s.ledger.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProjectResponse(id, p), nil
}

// transition 加项目锁后执行一次状态迁移，并记录结果指标
func (s *CrowdfundService) transition(ctx context.Context, op, projectID string, fn func(id crowdfund.ProjectID) (*crowdfund.Project, error)) (resp *ProjectResponse, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = crowdfund.ErrorName(err)
			if errors.Is(err, ErrBusy) {
				result = "Busy"
			}
		}
		s.metrics.Transitions.WithLabelValues(op, result).Inc()
		s.metrics.TransitionLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	id, err := crowdfund.ParseProjectID(projectID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		logger.Warn("[Crowdfund] 获取项目锁失败: op=%s, project=%s, err=%v", op, projectID, err)
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer release()

	p, err := fn(id)
	if err != nil {
		if crowdfund.IsBusinessError(err) {
			logger.Info("[Crowdfund] 请求被拒绝: op=%s, project=%s, reason=%s", op, projectID, crowdfund.ErrorName(err))
		} else {
			logger.Error("[Crowdfund] 状态迁移失败: op=%s, project=%s, err=%v", op, projectID, err)
		}
		return nil, err
	}
	return toProjectResponse(id, p), nil
}

func toProjectResponse(id crowdfund.ProjectID, p *crowdfund.Project) *ProjectResponse {
	contributors := make([]string, 0, p.Contributors.Len())
	for _, account := range p.Contributors.List() {
		contributors = append(contributors, string(account))
	}
	return &ProjectResponse{
		ProjectID:    id.String(),
		Owner:        string(p.Owner),
		PotAccount:   string(p.PotAccount),
		TargetFund:   uint64(p.TargetFund),
		MinFund:      uint64(p.MinFund),
		TotalFund:    uint64(p.TotalFund),
		Contributors: contributors,
		Status:       p.Status.String(),
	}
}
