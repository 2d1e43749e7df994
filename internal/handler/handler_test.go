package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crowdfunding/internal/config"
	"crowdfunding/internal/crowdfund"
	"crowdfunding/internal/crowdfund/memstore"
	"crowdfunding/internal/infrastructure/lock"
	"crowdfunding/internal/metrics"
	"crowdfunding/internal/service"
	"crowdfunding/internal/testutil"
	"crowdfunding/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	testSecret = "test-secret"
	testIssuer = "crowdfunding"
)

var projectHex = crowdfund.HashProjectID([]byte("40")).String()

type envelope struct {
	Code  int             `json:"code"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, rps float64, burst int) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode, RateLimitRPS: rps, RateLimitBurst: burst},
		Auth:   config.AuthConfig{JWTSecret: testSecret, Issuer: testIssuer},
	}

	store := memstore.New(1)
	for _, account := range []crowdfund.AccountID{"alice", "bob", "charlie", "dave"} {
		store.SetBalance(account, 1000)
	}
	_, client := testutil.NewTestRedis(t)
	reg := prometheus.NewRegistry()

	h := NewHandler(
		service.NewCrowdfundService(crowdfund.NewLedger(store), lock.NewProjectLocker(client, time.Second), metrics.New(reg)),
		service.NewAccountService(testutil.NewTestDB(t), true),
	)
	return SetupRouter(cfg, h, reg)
}

func token(t *testing.T, account string) string {
	t.Helper()
	tok, err := SignToken([]byte(testSecret), testIssuer, account, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func do(t *testing.T, r *gin.Engine, method, path, caller string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, caller))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Code == http.StatusOK || w.Code == http.StatusUnauthorized || w.Code == http.StatusTooManyRequests {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, env
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t, 1000, 1000)

	status, env := do(t, r, http.MethodPost, "/api/v1/project/initiate", "alice", gin.H{
		"project_id": projectHex, "owner": "alice", "pot_account": "charlie", "target_fund": 100, "min_fund": 10,
	})
	if status != http.StatusOK || env.Code != response.CodeSuccess {
		t.Fatalf("initiate: status=%d env=%+v", status, env)
	}

	_, env = do(t, r, http.MethodPost, "/api/v1/project/fund", "bob", gin.H{"project_id": projectHex, "amount": 5})
	if env.Code != response.CodeIncreaseAmount || env.Error != "IncreaseAmount" {
		t.Fatalf("expected IncreaseAmount, got %+v", env)
	}

	_, env = do(t, r, http.MethodPost, "/api/v1/project/fund", "bob", gin.H{"project_id": projectHex, "amount": 50})
	if env.Code != response.CodeSuccess {
		t.Fatalf("fund: %+v", env)
	}

	_, env = do(t, r, http.MethodPost, "/api/v1/project/stop", "bob", gin.H{"project_id": projectHex})
	if env.Code != response.CodeOnlyOwnerCanStopCrowdFunding {
		t.Fatalf("expected owner check, got %+v", env)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/project/detail?project_id="+projectHex, "", nil)
	var detail service.ProjectResponse
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.TotalFund != 50 || detail.Status != "ACTIVE" || len(detail.Contributors) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}

	_, env = do(t, r, http.MethodPost, "/api/v1/project/stop", "alice", gin.H{"project_id": projectHex})
	if env.Code != response.CodeSuccess {
		t.Fatalf("stop: %+v", env)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/project/detail?project_id=0x12", "", nil)
	if env.Code != response.CodeParamError {
		t.Fatalf("malformed id should be a param error, got %+v", env)
	}
}

func TestAuthRequired(t *testing.T) {
	r := newTestRouter(t, 1000, 1000)

	status, env := do(t, r, http.MethodPost, "/api/v1/project/fund", "", gin.H{"project_id": projectHex, "amount": 50})
	if status != http.StatusUnauthorized || env.Code != response.CodeUnauthorized {
		t.Fatalf("expected 401, got %d %+v", status, env)
	}

	forged, _ := SignToken([]byte("other-secret"), testIssuer, "bob", time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/project/fund", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("forged token must be rejected, got %d", w.Code)
	}

	expired, _ := SignToken([]byte(testSecret), testIssuer, "bob", -time.Minute)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/project/fund", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token must be rejected, got %d", w.Code)
	}
}

func TestRechargeAndBalanceOverHTTP(t *testing.T) {
	r := newTestRouter(t, 1000, 1000)

	_, env := do(t, r, http.MethodPost, "/api/v1/account/recharge", "bob", gin.H{"account_id": "bob", "amount": 300})
	if env.Code != response.CodeSuccess {
		t.Fatalf("recharge: %+v", env)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/account/balance?account_id=bob", "", nil)
	var balance service.BalanceResponse
	if err := json.Unmarshal(env.Data, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != 300 {
		t.Fatalf("balance = %d, want 300", balance.Balance)
	}
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, 0.001, 1)

	status, _ := do(t, r, http.MethodGet, "/api/v1/account/balance?account_id=bob", "", nil)
	if status != http.StatusOK {
		t.Fatalf("first request: %d", status)
	}
	status, env := do(t, r, http.MethodGet, "/api/v1/account/balance?account_id=bob", "", nil)
	if status != http.StatusTooManyRequests || env.Code != response.CodeTooManyRequests {
		t.Fatalf("expected 429, got %d %+v", status, env)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, 1000, 1000)
	do(t, r, http.MethodPost, "/api/v1/project/fund", "bob", gin.H{"project_id": projectHex, "amount": 50})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `crowdfund_transitions_total{op="fund",result="ProjectNotFound"} 1`) {
		t.Fatalf("metrics missing transition counter:\n%s", w.Body.String())
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Now()

	if !l.Allow("ip:1.2.3.4", now) || l.Allow("ip:1.2.3.4", now) {
		t.Fatal("burst of 1 should allow exactly one request")
	}
	if !l.Allow("bob", now) {
		t.Fatal("keys must not share a bucket")
	}

	later := now.Add(time.Hour)
	for i := 0; i < 512; i++ {
		l.Allow("alice", later)
	}
	if _, ok := l.byKey["ip:1.2.3.4"]; ok {
		t.Fatal("idle key should be evicted")
	}
}
