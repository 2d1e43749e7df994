package crowdfund

import "context"

// ProjectStore 项目持久化存储，按项目ID点查/点写
type ProjectStore interface {
	// Get 项目不存在时返回 ErrProjectNotFound
	Get(ctx context.Context, id ProjectID) (*Project, error)
	Contains(ctx context.Context, id ProjectID) (bool, error)
	// Insert 插入或覆盖
	Insert(ctx context.Context, id ProjectID, p *Project) error
}

// Currency 宿主账本的转账能力
//
// 失败时返回 *TransferError；金额为 0 或转给自己视为成功且不产生变动。
type Currency interface {
	Transfer(ctx context.Context, from, to AccountID, amount Balance, req ExistenceRequirement) error
}

// EventSink 事件出口。事务内发出的事件只能在提交后投递
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}

// Tx 一次状态迁移可见的全部外部依赖
type Tx interface {
	Projects() ProjectStore
	Currency() Currency
	Events() EventSink
}

// UnitOfWork 以全有或全无的方式执行一次状态迁移：
// fn 返回错误时，存储写入、转账和事件全部丢弃。
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// ProjectReader 不加锁的只读查询。UnitOfWork 同时实现它时，Ledger.Project 不开写事务
type ProjectReader interface {
	Lookup(ctx context.Context, id ProjectID) (*Project, error)
}
