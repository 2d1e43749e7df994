package job

import (
	"context"
	"testing"
	"time"

	"crowdfunding/internal/metrics"
	"crowdfunding/internal/model"
	"crowdfunding/internal/repository"
	"crowdfunding/internal/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPotReconcileFindsShortfall(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	projects := repository.NewProjectRepository(db)
	accounts := repository.NewAccountRepository(db)

	rows := []*model.Project{
		{ProjectID: "0x01", Owner: "alice", PotAccount: "charlie", TargetFund: 100, MinFund: 1, TotalFund: 60, Status: true},
		{ProjectID: "0x02", Owner: "alice", PotAccount: "charlie", TargetFund: 100, MinFund: 1, TotalFund: 30, Status: true},
		{ProjectID: "0x03", Owner: "alice", PotAccount: "charlie", TargetFund: 100, MinFund: 1, TotalFund: 500, Status: false},
		{ProjectID: "0x04", Owner: "bob", PotAccount: "erin", TargetFund: 100, MinFund: 1, TotalFund: 40, Status: true},
		{ProjectID: "0x05", Owner: "bob", PotAccount: "frank", TargetFund: 100, MinFund: 1, TotalFund: 10, Status: true},
	}
	for _, row := range rows {
		if err := projects.Create(ctx, nil, row); err != nil {
			t.Fatalf("create project: %v", err)
		}
	}
	// 0x03 已停止，不计入
	if err := projects.UpdateFunding(ctx, nil, "0x03", 500, false); err != nil {
		t.Fatalf("update project: %v", err)
	}

	for account, balance := range map[string]uint64{"charlie": 100, "erin": 25} {
		if _, err := accounts.GetOrCreate(ctx, nil, account); err != nil {
			t.Fatalf("create account: %v", err)
		}
		if err := accounts.Increase(ctx, nil, account, balance); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	m := metrics.NewNop()
	job, err := NewPotReconcileJob(db, m, time.Minute, 4)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	defer job.Release()

	shortfalls, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := make(map[string]PotShortfall)
	for _, s := range shortfalls {
		got[s.PotAccount] = s
	}
	if len(got) != 2 {
		t.Fatalf("expected shortfalls for erin and frank, got %+v", shortfalls)
	}
	if s := got["erin"]; s.Expected != 40 || s.Balance != 25 {
		t.Fatalf("erin shortfall %+v", s)
	}
	if s := got["frank"]; s.Expected != 10 || s.Balance != 0 {
		t.Fatalf("frank shortfall %+v", s)
	}

	if v := promtest.ToFloat64(m.PotShortfall.WithLabelValues("erin")); v != 15 {
		t.Fatalf("erin gauge = %v", v)
	}
	if v := promtest.ToFloat64(m.PotShortfall.WithLabelValues("charlie")); v != 0 {
		t.Fatalf("charlie gauge = %v", v)
	}
}
