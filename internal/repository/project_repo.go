package repository

import (
	"context"
	"errors"

	"crowdfunding/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProjectNotFound = errors.New("项目不存在")
	ErrProjectExists   = errors.New("项目已存在")
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *ProjectRepository) Create(ctx context.Context, tx *gorm.DB, project *model.Project) error {
	err := r.conn(tx).WithContext(ctx).Create(project).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrProjectExists
	}
	return err
}

func (r *ProjectRepository) GetByProjectID(ctx context.Context, tx *gorm.DB, projectID string) (*model.Project, error) {
	var project model.Project
	err := r.conn(tx).WithContext(ctx).Where("project_id = ?", projectID).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) GetByProjectIDForUpdate(ctx context.Context, tx *gorm.DB, projectID string) (*model.Project, error) {
	var project model.Project
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("project_id = ?", projectID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Exists(ctx context.Context, tx *gorm.DB, projectID string) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count > 0, err
}

// UpdateFunding 只更新可变字段；owner、资金池、目标金额创建后不可修改
func (r *ProjectRepository) UpdateFunding(ctx context.Context, tx *gorm.DB, projectID string, totalFund uint64, status bool) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ?", projectID).
		Updates(map[string]interface{}{
			"total_fund": totalFund,
			"status":     status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) ListContributors(ctx context.Context, tx *gorm.DB, projectID string) ([]string, error) {
	var accounts []string
	err := r.conn(tx).WithContext(ctx).
		Model(&model.ProjectContributor{}).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Pluck("account_id", &accounts).Error
	return accounts, err
}

// AddContributors 已存在的出资人忽略
func (r *ProjectRepository) AddContributors(ctx context.Context, tx *gorm.DB, projectID string, accounts []string) error {
	if len(accounts) == 0 {
		return nil
	}
	rows := make([]model.ProjectContributor, 0, len(accounts))
	for _, account := range accounts {
		rows = append(rows, model.ProjectContributor{ProjectID: projectID, AccountID: account})
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "account_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// PotTotal 某个资金池账户下所有进行中项目的资金合计
type PotTotal struct {
	PotAccount string
	Total      uint64
	Projects   int64
}

func (r *ProjectRepository) SumActiveByPot(ctx context.Context) ([]PotTotal, error) {
	var totals []PotTotal
	err := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Select("pot_account, SUM(total_fund) AS total, COUNT(*) AS projects").
		Where("status = ?", true).
		Group("pot_account").
		Scan(&totals).Error
	return totals, err
}
