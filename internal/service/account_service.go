package service

import (
	"context"
	"errors"
	"fmt"

	"crowdfunding/internal/logger"
	"crowdfunding/internal/model"
	"crowdfunding/internal/repository"
	"crowdfunding/pkg/idgen"

	"gorm.io/gorm"
)

var (
	ErrRechargeDisabled = errors.New("未开放充值")
	ErrInvalidAmount    = errors.New("充值金额必须大于0")
	ErrBalanceOverflow  = errors.New("充值后余额溢出")
)

// rechargeSource 充值流水的对手方
const rechargeSource = "faucet"

type AccountService struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	allowRecharge   bool
}

func NewAccountService(db *gorm.DB, allowRecharge bool) *AccountService {
	return &AccountService{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		allowRecharge:   allowRecharge,
	}
}

type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   uint64 `json:"balance"`
}

type RechargeRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Amount    uint64 `json:"amount"`
}

// GetBalance 账户不存在时余额为 0
func (s *AccountService) GetBalance(ctx context.Context, accountID string) (*BalanceResponse, error) {
	account, err := s.accountRepo.GetByAccountID(ctx, nil, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return &BalanceResponse{AccountID: accountID}, nil
		}
		return nil, err
	}
	return &BalanceResponse{AccountID: account.AccountID, Balance: account.Balance}, nil
}

// Recharge 开发环境的水龙头，凭空给账户加钱
func (s *AccountService) Recharge(ctx context.Context, req *RechargeRequest) (*BalanceResponse, error) {
	if !s.allowRecharge {
		return nil, ErrRechargeDisabled
	}
	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}

	var after uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.GetOrCreate(ctx, tx, req.AccountID); err != nil {
			return fmt.Errorf("获取账户失败: %w", err)
		}
		account, err := s.accountRepo.GetByAccountIDForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return fmt.Errorf("获取账户失败: %w", err)
		}
		if account.Balance+req.Amount < account.Balance {
			return ErrBalanceOverflow
		}

		if err := s.accountRepo.Increase(ctx, tx, req.AccountID, req.Amount); err != nil {
			return fmt.Errorf("充值失败: %w", err)
		}

		after = account.Balance + req.Amount
		trans := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			TransferNo:    idgen.GenerateTransferNo(),
			AccountID:     req.AccountID,
			Counterparty:  rechargeSource,
			Direction:     model.DirectionIn,
			Amount:        req.Amount,
			Type:          model.TransactionTypeRecharge,
			BalanceBefore: account.Balance,
			BalanceAfter:  after,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[Account] 充值成功: account=%s, amount=%d, balance=%d", req.AccountID, req.Amount, after)
	return &BalanceResponse{AccountID: req.AccountID, Balance: after}, nil
}
