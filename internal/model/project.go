package model

import (
	"time"
)

// Project 众筹项目表
// project_id 为发起方提交的 32 字节标识（0x 开头的十六进制）
type Project struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID  string    `gorm:"type:varchar(66);uniqueIndex;not null" json:"project_id"`
	Owner      string    `gorm:"type:varchar(128);index;not null" json:"owner"`
	PotAccount string    `gorm:"type:varchar(128);index;not null" json:"pot_account"`
	TargetFund uint64    `gorm:"not null" json:"target_fund"`
	MinFund    uint64    `gorm:"not null" json:"min_fund"`
	TotalFund  uint64    `gorm:"not null;default:0" json:"total_fund"`
	Status     bool      `gorm:"not null;index" json:"status"` // true=进行中 false=已结算/已停止
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string {
	return "crowdfund_project"
}

// ProjectContributor 出资人表，(project_id, account_id) 唯一
type ProjectContributor struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID string    `gorm:"type:varchar(66);uniqueIndex:uk_project_account;not null" json:"project_id"`
	AccountID string    `gorm:"type:varchar(128);uniqueIndex:uk_project_account;not null" json:"account_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProjectContributor) TableName() string {
	return "crowdfund_contributor"
}
