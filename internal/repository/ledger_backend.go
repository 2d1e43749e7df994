package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crowdfunding/internal/crowdfund"
	"crowdfunding/internal/model"
	"crowdfunding/pkg/idgen"

	"gorm.io/gorm"
)

// ============================================================================
// LedgerBackend：众筹状态机的数据库实现
// ============================================================================
//
// 一次状态迁移对应一个数据库事务，事务内完成：
//   - 项目记录和出资人的写入
//   - 账户余额变动 + 两条账户流水
//   - 事件写入 outbox_message（提交后由 OutboxSender 投递到 Kafka）
//
// 任何一步失败，整个事务回滚，不会出现"钱转了但项目没更新"的中间状态。
// ============================================================================

type LedgerBackend struct {
	db                 *gorm.DB
	projectRepo        *ProjectRepository
	accountRepo        *AccountRepository
	transactionRepo    *TransactionRepository
	outboxRepo         *OutboxRepository
	existentialDeposit uint64
	eventTopic         string
}

func NewLedgerBackend(db *gorm.DB, existentialDeposit uint64, eventTopic string) *LedgerBackend {
	return &LedgerBackend{
		db:                 db,
		projectRepo:        NewProjectRepository(db),
		accountRepo:        NewAccountRepository(db),
		transactionRepo:    NewTransactionRepository(db),
		outboxRepo:         NewOutboxRepository(db),
		existentialDeposit: existentialDeposit,
		eventTopic:         eventTopic,
	}
}

func (b *LedgerBackend) InTx(ctx context.Context, fn func(tx crowdfund.Tx) error) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{
			backend: b,
			tx:      tx,
			loaded:  make(map[crowdfund.ProjectID]*crowdfund.Project),
		})
	})
}

// Lookup 查询接口走这里，不加行锁
func (b *LedgerBackend) Lookup(ctx context.Context, id crowdfund.ProjectID) (*crowdfund.Project, error) {
	row, err := b.projectRepo.GetByProjectID(ctx, nil, id.String())
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, crowdfund.ErrProjectNotFound
		}
		return nil, fmt.Errorf("查询项目失败: %w", err)
	}

	accounts, err := b.projectRepo.ListContributors(ctx, nil, row.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("查询出资人失败: %w", err)
	}
	return toDomainProject(row, accounts), nil
}

type ledgerTx struct {
	backend *LedgerBackend
	tx      *gorm.DB

	// 本事务内读到或写过的项目，用于判断出资人增量和流水类型
	loaded  map[crowdfund.ProjectID]*crowdfund.Project
	current *crowdfund.ProjectID
}

func (t *ledgerTx) Projects() crowdfund.ProjectStore { return (*ledgerProjects)(t) }
func (t *ledgerTx) Currency() crowdfund.Currency     { return (*ledgerCurrency)(t) }
func (t *ledgerTx) Events() crowdfund.EventSink      { return (*ledgerEvents)(t) }

func (t *ledgerTx) remember(id crowdfund.ProjectID, p *crowdfund.Project) {
	t.loaded[id] = p.Clone()
	t.current = &id
}

// ---------------------------------------------------------------------------
// 项目存储
// ---------------------------------------------------------------------------

type ledgerProjects ledgerTx

func (p *ledgerProjects) Get(ctx context.Context, id crowdfund.ProjectID) (*crowdfund.Project, error) {
	repo := p.backend.projectRepo
	row, err := repo.GetByProjectIDForUpdate(ctx, p.tx, id.String())
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, crowdfund.ErrProjectNotFound
		}
		return nil, fmt.Errorf("查询项目失败: %w", err)
	}

	accounts, err := repo.ListContributors(ctx, p.tx, row.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("查询出资人失败: %w", err)
	}

	project := toDomainProject(row, accounts)
	(*ledgerTx)(p).remember(id, project)
	return project, nil
}

func (p *ledgerProjects) Contains(ctx context.Context, id crowdfund.ProjectID) (bool, error) {
	exists, err := p.backend.projectRepo.Exists(ctx, p.tx, id.String())
	if err != nil {
		return false, fmt.Errorf("查询项目失败: %w", err)
	}
	return exists, nil
}

func (p *ledgerProjects) Insert(ctx context.Context, id crowdfund.ProjectID, project *crowdfund.Project) error {
	repo := p.backend.projectRepo
	key := id.String()

	previous, known := p.loaded[id]
	if !known {
		exists, err := repo.Exists(ctx, p.tx, key)
		if err != nil {
			return fmt.Errorf("查询项目失败: %w", err)
		}
		if exists {
			// 未经 Get 直接覆盖：先读出已有出资人再做增量
			if _, err := p.Get(ctx, id); err != nil {
				return err
			}
			previous, known = p.loaded[id], true
		}
	}

	if !known {
		if err := repo.Create(ctx, p.tx, toModelProject(key, project)); err != nil {
			if errors.Is(err, ErrProjectExists) {
				return crowdfund.ErrDuplicateProjectIdNotAllowed
			}
			return fmt.Errorf("创建项目失败: %w", err)
		}
	} else if err := repo.UpdateFunding(ctx, p.tx, key, uint64(project.TotalFund), bool(project.Status)); err != nil {
		return fmt.Errorf("更新项目失败: %w", err)
	}

	var added []string
	for _, account := range project.Contributors.List() {
		if previous == nil || !previous.Contributors.Contains(account) {
			added = append(added, string(account))
		}
	}
	if err := repo.AddContributors(ctx, p.tx, key, added); err != nil {
		return fmt.Errorf("写入出资人失败: %w", err)
	}

	(*ledgerTx)(p).remember(id, project)
	return nil
}

// ---------------------------------------------------------------------------
// 宿主账本转账
// ---------------------------------------------------------------------------

type ledgerCurrency ledgerTx

func (c *ledgerCurrency) Transfer(ctx context.Context, from, to crowdfund.AccountID, amount crowdfund.Balance, req crowdfund.ExistenceRequirement) error {
	if amount == 0 || from == to {
		return nil
	}
	fail := func(reason error) error {
		return &crowdfund.TransferError{From: from, To: to, Amount: amount, Err: reason}
	}
	repo := c.backend.accountRepo
	ed := c.backend.existentialDeposit
	value := uint64(amount)

	src, err := repo.GetByAccountIDForUpdate(ctx, c.tx, string(from))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fail(crowdfund.ErrInsufficientBalance)
		}
		return fmt.Errorf("查询转出账户失败: %w", err)
	}
	if src.Balance < value {
		return fail(crowdfund.ErrInsufficientBalance)
	}
	if req == crowdfund.KeepAlive && src.Balance-value < ed {
		return fail(crowdfund.ErrKeepAlive)
	}

	dst, err := repo.GetOrCreate(ctx, c.tx, string(to))
	if err != nil {
		return fmt.Errorf("查询转入账户失败: %w", err)
	}
	if dst.Balance+value < dst.Balance {
		return fail(crowdfund.ErrArithmeticOverflow)
	}
	if dst.Balance+value < ed {
		return fail(crowdfund.ErrExistentialDeposit)
	}

	if err := repo.Deduct(ctx, c.tx, src.AccountID, value, src.Version); err != nil {
		if errors.Is(err, ErrBalanceNotEnough) {
			return fail(crowdfund.ErrInsufficientBalance)
		}
		return fmt.Errorf("扣款失败: %w", err)
	}
	if err := repo.Increase(ctx, c.tx, dst.AccountID, value); err != nil {
		return fmt.Errorf("入账失败: %w", err)
	}

	transType, projectID := c.classify(from, to)
	transferNo := idgen.GenerateTransferNo()
	entries := []*model.AccountTransaction{
		{
			TransactionNo: idgen.GenerateTransactionNo(),
			TransferNo:    transferNo,
			AccountID:     src.AccountID,
			Counterparty:  dst.AccountID,
			ProjectID:     projectID,
			Direction:     model.DirectionOut,
			Amount:        value,
			Type:          transType,
			BalanceBefore: src.Balance,
			BalanceAfter:  src.Balance - value,
		},
		{
			TransactionNo: idgen.GenerateTransactionNo(),
			TransferNo:    transferNo,
			AccountID:     dst.AccountID,
			Counterparty:  src.AccountID,
			ProjectID:     projectID,
			Direction:     model.DirectionIn,
			Amount:        value,
			Type:          transType,
			BalanceBefore: dst.Balance,
			BalanceAfter:  dst.Balance + value,
		},
	}
	for _, entry := range entries {
		if err := c.backend.transactionRepo.Create(ctx, c.tx, entry); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
	}
	return nil
}

// classify 根据当前项目判断流水类型：转入资金池为出资，资金池转给发起人为提取
func (c *ledgerCurrency) classify(from, to crowdfund.AccountID) (string, string) {
	if c.current == nil {
		return model.TransactionTypeTransfer, ""
	}
	project := c.loaded[*c.current]
	projectID := c.current.String()
	switch {
	case from == project.PotAccount && to == project.Owner:
		return model.TransactionTypeWithdraw, projectID
	case to == project.PotAccount:
		return model.TransactionTypeContribute, projectID
	default:
		return model.TransactionTypeTransfer, projectID
	}
}

// ---------------------------------------------------------------------------
// 事件：写入发件箱，随事务一起提交
// ---------------------------------------------------------------------------

type ledgerEvents ledgerTx

func (e *ledgerEvents) Emit(ctx context.Context, event crowdfund.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := &model.OutboxMessage{
		MessageKey: event.ProjectID.String(),
		EventType:  string(event.Kind),
		Topic:      e.backend.eventTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := e.backend.outboxRepo.Create(ctx, e.tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

func toDomainProject(row *model.Project, contributors []string) *crowdfund.Project {
	set := crowdfund.NewContributorSet()
	for _, account := range contributors {
		set.Add(crowdfund.AccountID(account))
	}
	return &crowdfund.Project{
		Owner:        crowdfund.AccountID(row.Owner),
		PotAccount:   crowdfund.AccountID(row.PotAccount),
		TargetFund:   crowdfund.Balance(row.TargetFund),
		MinFund:      crowdfund.Balance(row.MinFund),
		TotalFund:    crowdfund.Balance(row.TotalFund),
		Contributors: set,
		Status:       crowdfund.ProjectStatus(row.Status),
	}
}

func toModelProject(projectID string, p *crowdfund.Project) *model.Project {
	return &model.Project{
		ProjectID:  projectID,
		Owner:      string(p.Owner),
		PotAccount: string(p.PotAccount),
		TargetFund: uint64(p.TargetFund),
		MinFund:    uint64(p.MinFund),
		TotalFund:  uint64(p.TotalFund),
		Status:     bool(p.Status),
	}
}
