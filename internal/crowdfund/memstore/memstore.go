// Package memstore 提供众筹账本依赖的内存实现：项目存储、账户余额和事件投递。
//
// 每个事务在底层状态之上叠加一层写缓冲，提交时合并，回滚时直接丢弃。
package memstore

import (
	"context"
	"sync"

	"crowdfunding/internal/crowdfund"
)

// Subscriber 事件订阅者，提交后按发出顺序回调
type Subscriber func(event crowdfund.Event)

// Store 内存版 UnitOfWork
type Store struct {
	mu                 sync.Mutex
	projects           map[crowdfund.ProjectID]*crowdfund.Project
	balances           map[crowdfund.AccountID]crowdfund.Balance
	existentialDeposit crowdfund.Balance
	events             []crowdfund.Event
	subscribers        []Subscriber
}

func New(existentialDeposit crowdfund.Balance) *Store {
	return &Store{
		projects:           make(map[crowdfund.ProjectID]*crowdfund.Project),
		balances:           make(map[crowdfund.AccountID]crowdfund.Balance),
		existentialDeposit: existentialDeposit,
	}
}

// SetBalance 直接设置账户余额（测试和初始化使用）
func (s *Store) SetBalance(account crowdfund.AccountID, amount crowdfund.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] = amount
}

func (s *Store) Balance(account crowdfund.AccountID) crowdfund.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account]
}

// Events 返回已提交的全部事件
func (s *Store) Events() []crowdfund.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]crowdfund.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// InTx 事务内的写入只落在 overlay 上，fn 成功后一次性合并
func (s *Store) InTx(ctx context.Context, fn func(tx crowdfund.Tx) error) error {
	events, subscribers, err := s.apply(fn)
	if err != nil {
		return err
	}

	// 提交之后再投递
	for _, event := range events {
		for _, sub := range subscribers {
			sub(event)
		}
	}
	return nil
}

// apply 持锁执行 fn 并合并 overlay；fn panic 时锁照样释放
func (s *Store) apply(fn func(tx crowdfund.Tx) error) ([]crowdfund.Event, []Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		projects: make(map[crowdfund.ProjectID]*crowdfund.Project),
		balances: make(map[crowdfund.AccountID]crowdfund.Balance),
	}
	if err := fn(tx); err != nil {
		return nil, nil, err
	}

	for id, p := range tx.projects {
		s.projects[id] = p
	}
	for account, amount := range tx.balances {
		s.balances[account] = amount
	}
	s.events = append(s.events, tx.events...)
	return tx.events, append([]Subscriber(nil), s.subscribers...), nil
}

type memTx struct {
	store    *Store
	projects map[crowdfund.ProjectID]*crowdfund.Project
	balances map[crowdfund.AccountID]crowdfund.Balance
	events   []crowdfund.Event
}

func (t *memTx) Projects() crowdfund.ProjectStore { return (*txProjects)(t) }
func (t *memTx) Currency() crowdfund.Currency     { return (*txCurrency)(t) }
func (t *memTx) Events() crowdfund.EventSink      { return (*txEvents)(t) }

type txProjects memTx

func (p *txProjects) lookup(id crowdfund.ProjectID) (*crowdfund.Project, bool) {
	if project, ok := p.projects[id]; ok {
		return project, true
	}
	project, ok := p.store.projects[id]
	return project, ok
}

func (p *txProjects) Get(_ context.Context, id crowdfund.ProjectID) (*crowdfund.Project, error) {
	project, ok := p.lookup(id)
	if !ok {
		return nil, crowdfund.ErrProjectNotFound
	}
	return project.Clone(), nil
}

func (p *txProjects) Contains(_ context.Context, id crowdfund.ProjectID) (bool, error) {
	_, ok := p.lookup(id)
	return ok, nil
}

func (p *txProjects) Insert(_ context.Context, id crowdfund.ProjectID, project *crowdfund.Project) error {
	p.projects[id] = project.Clone()
	return nil
}

type txCurrency memTx

func (c *txCurrency) balance(account crowdfund.AccountID) (crowdfund.Balance, bool) {
	if amount, ok := c.balances[account]; ok {
		return amount, true
	}
	amount, ok := c.store.balances[account]
	return amount, ok
}

func (c *txCurrency) Transfer(_ context.Context, from, to crowdfund.AccountID, amount crowdfund.Balance, req crowdfund.ExistenceRequirement) error {
	if amount == 0 || from == to {
		return nil
	}
	fail := func(reason error) error {
		return &crowdfund.TransferError{From: from, To: to, Amount: amount, Err: reason}
	}

	fromBalance, _ := c.balance(from)
	if fromBalance < amount {
		return fail(crowdfund.ErrInsufficientBalance)
	}
	remaining := fromBalance - amount
	if req == crowdfund.KeepAlive && remaining < c.store.existentialDeposit {
		return fail(crowdfund.ErrKeepAlive)
	}

	toBalance, _ := c.balance(to)
	credited := toBalance + amount
	if credited < toBalance {
		return fail(crowdfund.ErrArithmeticOverflow)
	}
	if credited < c.store.existentialDeposit {
		return fail(crowdfund.ErrExistentialDeposit)
	}

	c.balances[from] = remaining
	c.balances[to] = credited
	return nil
}

type txEvents memTx

func (e *txEvents) Emit(_ context.Context, event crowdfund.Event) error {
	e.events = append(e.events, event)
	return nil
}
