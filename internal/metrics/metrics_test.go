package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// カウンタの値をレジストリから取り出すヘルパー。見つからない場合は-1を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			total := 0.0
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	return -1
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLoginSuccess_IncrementsCounter はログイン成功カウンタが増加することを検証する。
func TestRecordLoginSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess("google")
	c.RecordLoginSuccess("google")
	c.RecordLoginSuccess("password")

	if val := counterValue(t, reg, "notelog_login_success_total"); val != 3 {
		t.Errorf("login_success_total = %v, want 3", val)
	}
}

// TestRecordLoginFailure_IncrementsCounter はログイン失敗カウンタが増加することを検証する。
func TestRecordLoginFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginFailure("google", "upstream_rejected")

	if val := counterValue(t, reg, "notelog_login_fail_total"); val != 1 {
		t.Errorf("login_fail_total = %v, want 1", val)
	}
}

// TestRecordTokenMetrics は発行・ローテーションカウンタが増加することを検証する。
func TestRecordTokenMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenPairIssued()
	c.RecordTokenPairIssued()
	c.RecordTokenRotation()

	if val := counterValue(t, reg, "notelog_token_pairs_issued_total"); val != 2 {
		t.Errorf("token_pairs_issued_total = %v, want 2", val)
	}
	if val := counterValue(t, reg, "notelog_token_rotations_total"); val != 1 {
		t.Errorf("token_rotations_total = %v, want 1", val)
	}
}

// TestRecordRevokedTokensPurged は削除件数が加算されることを検証する。
func TestRecordRevokedTokensPurged(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRevokedTokensPurged(5)
	c.RecordRevokedTokensPurged(3)

	if val := counterValue(t, reg, "notelog_revoked_tokens_purged_total"); val != 8 {
		t.Errorf("revoked_tokens_purged_total = %v, want 8", val)
	}
}

// TestRecordExchangeLatency_ObservesHistogram は交換レイテンシが記録されることを検証する。
func TestRecordExchangeLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExchangeLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "notelog_oauth_exchange_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("sample count = %d, want 1", count)
			}
		}
	}
	if !found {
		t.Error("notelog_oauth_exchange_latency_seconds metric not found")
	}
}

// TestSetupMetricsRoute_ServesPrometheusFormat は/metricsがスクレイプ可能なことを検証する。
func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(200)

	server := httptest.NewServer(SetupMetricsRoute(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "notelog_http_status_total") {
		t.Error("expected notelog_http_status_total in scrape output")
	}
}
