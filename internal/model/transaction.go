package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeRecharge   = "RECHARGE"   // 充值
	TransactionTypeContribute = "CONTRIBUTE" // 出资：出资人 -> 资金池
	TransactionTypeWithdraw   = "WITHDRAW"   // 提取：资金池 -> 发起人
	TransactionTypeTransfer   = "TRANSFER"   // 其他转账
)

const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// ============================================================================
// 账户流水实体
// ============================================================================

// AccountTransaction 账户流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除，保证审计可追溯
// 2. 一次转账写两条流水（转出方 OUT、转入方 IN），共用同一个 TransferNo
// 3. 记录交易前后余额，便于校验余额一致性
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	TransferNo    string    `gorm:"type:varchar(64);index;not null" json:"transfer_no"`
	AccountID     string    `gorm:"type:varchar(128);index;not null" json:"account_id"`
	Counterparty  string    `gorm:"type:varchar(128);not null" json:"counterparty"`
	ProjectID     string    `gorm:"type:varchar(66);index" json:"project_id"`
	Direction     string    `gorm:"type:varchar(8);not null" json:"direction"`
	Amount        uint64    `gorm:"not null" json:"amount"`
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore uint64    `gorm:"not null" json:"balance_before"`
	BalanceAfter  uint64    `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
