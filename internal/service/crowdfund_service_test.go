package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crowdfunding/internal/crowdfund"
	"crowdfunding/internal/crowdfund/memstore"
	"crowdfunding/internal/infrastructure/lock"
	"crowdfunding/internal/metrics"
	"crowdfunding/internal/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

var projectHex = crowdfund.HashProjectID([]byte("40")).String()

func newCrowdfundService(t *testing.T) (*CrowdfundService, *memstore.Store, *metrics.Metrics) {
	t.Helper()
	store := memstore.New(1)
	for _, account := range []crowdfund.AccountID{"alice", "bob", "charlie", "dave"} {
		store.SetBalance(account, 1000)
	}
	_, client := testutil.NewTestRedis(t)
	m := metrics.NewNop()
	svc := NewCrowdfundService(crowdfund.NewLedger(store), lock.NewProjectLocker(client, time.Second), m)
	return svc, store, m
}

func initiate(t *testing.T, svc *CrowdfundService) {
	t.Helper()
	_, err := svc.Initiate(context.Background(), "alice", &InitiateRequest{
		ProjectID:  projectHex,
		Owner:      "alice",
		PotAccount: "charlie",
		TargetFund: 100,
		MinFund:    10,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
}

func TestCrowdfundServiceScenario(t *testing.T) {
	svc, store, m := newCrowdfundService(t)
	ctx := context.Background()
	initiate(t, svc)

	resp, err := svc.Fund(ctx, "bob", &FundRequest{ProjectID: projectHex, Amount: 50})
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if resp.Status != "ACTIVE" || resp.TotalFund != 50 {
		t.Fatalf("unexpected response %+v", resp)
	}

	resp, err = svc.Fund(ctx, "dave", &FundRequest{ProjectID: projectHex, Amount: 60})
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if resp.Status != "STOPPED" || resp.TotalFund != 0 || len(resp.Contributors) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if store.Balance("alice") != 1110 {
		t.Fatalf("owner balance = %d", store.Balance("alice"))
	}

	if got := promtest.ToFloat64(m.Contributed); got != 110 {
		t.Fatalf("contributed metric = %v", got)
	}
	if got := promtest.ToFloat64(m.Settlements.WithLabelValues("target")); got != 1 {
		t.Fatalf("settlement metric = %v", got)
	}

	_, err = svc.Fund(ctx, "bob", &FundRequest{ProjectID: projectHex, Amount: 10})
	if !errors.Is(err, crowdfund.ErrProjectNotActive) {
		t.Fatalf("expected ErrProjectNotActive, got %v", err)
	}
	if got := promtest.ToFloat64(m.Transitions.WithLabelValues("fund", "ProjectNotActive")); got != 1 {
		t.Fatalf("rejected transition metric = %v", got)
	}

	detail, err := svc.GetProject(ctx, projectHex)
	if err != nil || detail.Status != "STOPPED" {
		t.Fatalf("detail = %+v, err=%v", detail, err)
	}
}

func TestCrowdfundServiceRejectsMalformedID(t *testing.T) {
	svc, _, _ := newCrowdfundService(t)
	_, err := svc.Fund(context.Background(), "bob", &FundRequest{ProjectID: "0x1234", Amount: 10})
	if !errors.Is(err, crowdfund.ErrInvalidProjectID) {
		t.Fatalf("expected ErrInvalidProjectID, got %v", err)
	}
}

func TestCrowdfundServiceStop(t *testing.T) {
	svc, store, m := newCrowdfundService(t)
	ctx := context.Background()
	initiate(t, svc)

	if _, err := svc.Fund(ctx, "bob", &FundRequest{ProjectID: projectHex, Amount: 30}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if _, err := svc.Stop(ctx, "bob", &StopRequest{ProjectID: projectHex}); !errors.Is(err, crowdfund.ErrOnlyOwnerCanStopCrowdFunding) {
		t.Fatalf("expected owner check, got %v", err)
	}
	resp, err := svc.Stop(ctx, "alice", &StopRequest{ProjectID: projectHex})
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if resp.Status != "STOPPED" || store.Balance("alice") != 1030 {
		t.Fatalf("unexpected state after stop: %+v", resp)
	}
	if got := promtest.ToFloat64(m.Settlements.WithLabelValues("stop")); got != 1 {
		t.Fatalf("stop metric = %v", got)
	}
}

func TestCrowdfundServiceConcurrentFunding(t *testing.T) {
	svc, store, _ := newCrowdfundService(t)
	ctx := context.Background()
	_, err := svc.Initiate(ctx, "alice", &InitiateRequest{
		ProjectID: projectHex, Owner: "alice", PotAccount: "charlie", TargetFund: 10000, MinFund: 1,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, account := range []string{"bob", "dave"} {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(account string) {
				defer wg.Done()
				if _, err := svc.Fund(ctx, account, &FundRequest{ProjectID: projectHex, Amount: 5}); err != nil {
					t.Errorf("fund failed: %v", err)
				}
			}(account)
		}
	}
	wg.Wait()

	detail, err := svc.GetProject(ctx, projectHex)
	if err != nil {
		t.Fatalf("detail failed: %v", err)
	}
	if detail.TotalFund != 100 || store.Balance("charlie") != 1100 {
		t.Fatalf("lost update: total=%d pot=%d", detail.TotalFund, store.Balance("charlie"))
	}
}
