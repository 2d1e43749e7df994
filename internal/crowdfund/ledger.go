package crowdfund

import (
	"context"
	"sync"
)

// ============================================================================
// 众筹账本状态机
// ============================================================================
//
// 每个项目只有两个状态：进行中(Active) -> 已结算/已停止(Stopped，终态)。
//
// 每次迁移按固定顺序执行：
//   1. 校验前置条件（任何校验失败都不产生写入）
//   2. 在副本上计算新状态
//   3. 调用宿主账本转账
//   4. 转账成功后才落库
//   5. 发出事件（由 UnitOfWork 在提交后投递）
//
// 整个过程包在 UnitOfWork.InTx 中，任何一步失败整体回滚。
// ============================================================================

// Option 账本配置项
type Option func(*Ledger)

// WithInitiatorMustBeOwner 要求发起众筹的调用者与项目 Owner 一致
func WithInitiatorMustBeOwner(enforce bool) Option {
	return func(l *Ledger) {
		l.initiatorMustBeOwner = enforce
	}
}

// Ledger 众筹账本
type Ledger struct {
	uow                  UnitOfWork
	initiatorMustBeOwner bool

	// 所有迁移串行执行
	mu sync.Mutex
}

func NewLedger(uow UnitOfWork, opts ...Option) *Ledger {
	l := &Ledger{uow: uow}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initiate 发起众筹项目
func (l *Ledger) Initiate(ctx context.Context, caller AccountID, id ProjectID, spec ProjectSpec) (*Project, error) {
	if l.initiatorMustBeOwner && caller != spec.Owner {
		return nil, ErrOnlyOwnerCanInitiate
	}

	var created *Project
	err := l.transition(ctx, func(tx Tx) error {
		exists, err := tx.Projects().Contains(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateProjectIdNotAllowed
		}

		project := NewProject(spec)
		if err := tx.Projects().Insert(ctx, id, project); err != nil {
			return err
		}

		created = project
		return tx.Events().Emit(ctx, campaignInitiated(id, project))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Fund 出资。达到目标金额时在同一次迁移内结算给发起人
func (l *Ledger) Fund(ctx context.Context, caller AccountID, id ProjectID, amount Balance) (*Project, error) {
	var updated *Project
	err := l.transition(ctx, func(tx Tx) error {
		current, err := tx.Projects().Get(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return ErrProjectNotActive
		}
		if current.TotalFund >= current.TargetFund {
			return ErrTargetAmountReached
		}
		if amount < current.MinFund {
			return ErrIncreaseAmount
		}

		total, ok := addBalance(current.TotalFund, amount)
		if !ok {
			return ErrArithmeticOverflow
		}

		project := current.Clone()
		project.TotalFund = total
		project.Contributors.Add(caller)

		if err := tx.Currency().Transfer(ctx, caller, project.PotAccount, amount, KeepAlive); err != nil {
			return err
		}
		if err := tx.Projects().Insert(ctx, id, project); err != nil {
			return err
		}
		if err := tx.Events().Emit(ctx, contributionTransferred(id, caller, project.PotAccount, amount)); err != nil {
			return err
		}

		if project.TotalFund >= project.TargetFund {
			if err := withdraw(ctx, tx, id, project); err != nil {
				return err
			}
		}

		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Stop 发起人提前终止众筹，资金池余额全部转给发起人
func (l *Ledger) Stop(ctx context.Context, caller AccountID, id ProjectID) (*Project, error) {
	var stopped *Project
	err := l.transition(ctx, func(tx Tx) error {
		current, err := tx.Projects().Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Owner != caller {
			return ErrOnlyOwnerCanStopCrowdFunding
		}
		if !current.IsActive() {
			return ErrProjectNotActive
		}

		project := current.Clone()
		if err := withdraw(ctx, tx, id, project); err != nil {
			return err
		}

		stopped = project
		return tx.Events().Emit(ctx, campaignStopped(id))
	})
	if err != nil {
		return nil, err
	}
	return stopped, nil
}

// Project 按项目ID直接查询
func (l *Ledger) Project(ctx context.Context, id ProjectID) (*Project, error) {
	if reader, ok := l.uow.(ProjectReader); ok {
		return reader.Lookup(ctx, id)
	}

	var found *Project
	err := l.uow.InTx(ctx, func(tx Tx) error {
		p, err := tx.Projects().Get(ctx, id)
		if err != nil {
			return err
		}
		found = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (l *Ledger) transition(ctx context.Context, fn func(tx Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.uow.InTx(ctx, fn)
}

// withdraw 把资金池中的全部资金转给发起人，清零并关闭项目
func withdraw(ctx context.Context, tx Tx, id ProjectID, project *Project) error {
	amount := project.TotalFund
	if err := tx.Currency().Transfer(ctx, project.PotAccount, project.Owner, amount, KeepAlive); err != nil {
		return err
	}

	project.TotalFund = 0
	project.Status = StatusStopped
	if err := tx.Projects().Insert(ctx, id, project); err != nil {
		return err
	}
	return tx.Events().Emit(ctx, fundsWithdrawn(id, project.PotAccount, project.Owner, amount))
}

func addBalance(a, b Balance) (Balance, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
