package crowdfund

import (
	"errors"
	"fmt"
)

// 业务规则错误，均为终态错误，不可重试
var (
	ErrProjectNotFound              = errors.New("项目不存在")
	ErrProjectNotActive             = errors.New("项目未处于进行中状态")
	ErrTargetAmountReached          = errors.New("项目已达到目标金额")
	ErrIncreaseAmount               = errors.New("出资金额低于最低出资额")
	ErrOnlyOwnerCanStopCrowdFunding = errors.New("只有发起人可以停止众筹")
	ErrDuplicateProjectIdNotAllowed = errors.New("项目ID已存在")
	ErrOnlyOwnerCanInitiate         = errors.New("发起人必须与项目所有者一致")
	ErrArithmeticOverflow           = errors.New("金额溢出")
)

// 宿主账本转账失败原因
var (
	ErrInsufficientBalance = errors.New("余额不足")
	ErrKeepAlive           = errors.New("转出后余额将低于存活最低余额")
	ErrExistentialDeposit  = errors.New("转入金额不足以激活收款账户")
)

// TransferError 宿主账本转账失败，状态机原样向上返回
type TransferError struct {
	From   AccountID
	To     AccountID
	Amount Balance
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("转账失败 %s -> %s (%d): %v", e.From, e.To, e.Amount, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

var errorNames = []struct {
	err  error
	name string
}{
	{ErrProjectNotFound, "ProjectNotFound"},
	{ErrProjectNotActive, "ProjectNotActive"},
	{ErrTargetAmountReached, "TargetAmountReached"},
	{ErrIncreaseAmount, "IncreaseAmount"},
	{ErrOnlyOwnerCanStopCrowdFunding, "OnlyOwnerCanStopCrowdFunding"},
	{ErrDuplicateProjectIdNotAllowed, "DuplicateProjectIdNotAllowed"},
	{ErrOnlyOwnerCanInitiate, "OnlyOwnerCanInitiate"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrKeepAlive, "KeepAlive"},
	{ErrExistentialDeposit, "ExistentialDeposit"},
	{ErrInvalidProjectID, "InvalidProjectId"},
}

// ErrorName 返回错误的稳定名称，供接口层和指标使用
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	for _, e := range errorNames {
		if errors.Is(err, e.err) {
			return e.name
		}
	}
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return "TransferFailed"
	}
	return "Internal"
}

// IsBusinessError 是否为业务规则或转账错误（非系统故障）
func IsBusinessError(err error) bool {
	name := ErrorName(err)
	return name != "" && name != "Internal"
}
