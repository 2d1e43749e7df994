package crowdfund

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ProjectIDSize 项目ID固定长度（字节）
const ProjectIDSize = 32

var ErrInvalidProjectID = errors.New("项目ID格式错误")

// ProjectID 项目唯一标识，通常是发起方提交的内容哈希
type ProjectID [ProjectIDSize]byte

// HashProjectID 使用 BLAKE2b-256 计算内容哈希作为项目ID
func HashProjectID(data []byte) ProjectID {
	return ProjectID(blake2b.Sum256(data))
}

// ParseProjectID 解析 0x 开头的 64 位十六进制字符串
func ParseProjectID(s string) (ProjectID, error) {
	var id ProjectID
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != ProjectIDSize*2 {
		return id, fmt.Errorf("%w: %q", ErrInvalidProjectID, s)
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, fmt.Errorf("%w: %q", ErrInvalidProjectID, s)
	}
	return id, nil
}

func (id ProjectID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id ProjectID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ProjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseProjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AccountID 宿主账本中的账户标识
type AccountID string

// Balance 余额数量（无符号）
type Balance uint64

// ExistenceRequirement 转账时对转出账户的存活要求
type ExistenceRequirement int

const (
	// KeepAlive 转出后余额不得低于存活最低余额
	KeepAlive ExistenceRequirement = iota
	// AllowDeath 允许转出账户余额低于存活最低余额
	AllowDeath
)

func (r ExistenceRequirement) String() string {
	if r == KeepAlive {
		return "KEEP_ALIVE"
	}
	return "ALLOW_DEATH"
}

// ProjectStatus 项目状态：true=进行中，false=已结算/已停止（终态）
type ProjectStatus bool

const (
	StatusActive  ProjectStatus = true
	StatusStopped ProjectStatus = false
)

func (s ProjectStatus) String() string {
	if s == StatusActive {
		return "ACTIVE"
	}
	return "STOPPED"
}

// ProjectSpec 发起众筹时由发起方提交的字段
type ProjectSpec struct {
	Owner      AccountID `json:"owner"`
	PotAccount AccountID `json:"pot_account"`
	TargetFund Balance   `json:"target_fund"`
	MinFund    Balance   `json:"min_fund"`
}

// Project 众筹项目记录
//
// 资金流向：出资人 -> 资金池账户(PotAccount) -> 发起人(Owner)
type Project struct {
	Owner        AccountID      `json:"owner"`
	PotAccount   AccountID      `json:"pot_account"`
	TargetFund   Balance        `json:"target_fund"`
	MinFund      Balance        `json:"min_fund"`
	TotalFund    Balance        `json:"total_fund"`
	Contributors ContributorSet `json:"contributors"`
	Status       ProjectStatus  `json:"status"`
}

// NewProject 根据发起参数构造一个初始状态的项目
func NewProject(spec ProjectSpec) *Project {
	return &Project{
		Owner:      spec.Owner,
		PotAccount: spec.PotAccount,
		TargetFund: spec.TargetFund,
		MinFund:    spec.MinFund,
		TotalFund:  0,
		Status:     StatusActive,
	}
}

func (p *Project) IsActive() bool {
	return p.Status == StatusActive
}

// Clone 深拷贝，状态机只在副本上计算新状态
func (p *Project) Clone() *Project {
	cp := *p
	cp.Contributors = p.Contributors.Clone()
	return &cp
}

// ContributorSet 出资人集合，保留首次出资顺序仅用于稳定输出
type ContributorSet struct {
	order []AccountID
	index map[AccountID]struct{}
}

func NewContributorSet(accounts ...AccountID) ContributorSet {
	var s ContributorSet
	for _, a := range accounts {
		s.Add(a)
	}
	return s
}

func (s *ContributorSet) Contains(account AccountID) bool {
	_, ok := s.index[account]
	return ok
}

// Add 加入出资人，已存在时返回 false
func (s *ContributorSet) Add(account AccountID) bool {
	if s.Contains(account) {
		return false
	}
	if s.index == nil {
		s.index = make(map[AccountID]struct{})
	}
	s.index[account] = struct{}{}
	s.order = append(s.order, account)
	return true
}

func (s *ContributorSet) Len() int {
	return len(s.order)
}

func (s *ContributorSet) List() []AccountID {
	out := make([]AccountID, len(s.order))
	copy(out, s.order)
	return out
}

func (s ContributorSet) Clone() ContributorSet {
	return NewContributorSet(s.order...)
}

func (s ContributorSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *ContributorSet) UnmarshalJSON(data []byte) error {
	var accounts []AccountID
	if err := json.Unmarshal(data, &accounts); err != nil {
		return err
	}
	*s = NewContributorSet(accounts...)
	return nil
}
