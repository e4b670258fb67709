package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

// TestRecordLogin_ByOutcome はログイン結果ごとにカウントされることを検証する。
func TestRecordLogin_ByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("success")
	c.RecordLogin("wrong_password")
	c.RecordLogin("wrong_password")

	if v := findMetric(t, reg, "usergate_login_total", map[string]string{"outcome": "success"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("success = %v, want 1", v)
	}
	if v := findMetric(t, reg, "usergate_login_total", map[string]string{"outcome": "wrong_password"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("wrong_password = %v, want 2", v)
	}
}

// TestRecordRegistration_ByOutcome は登録結果ごとにカウントされることを検証する。
func TestRecordRegistration_ByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration("duplicate_email")

	if v := findMetric(t, reg, "usergate_registration_total", map[string]string{"outcome": "duplicate_email"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("duplicate_email = %v, want 1", v)
	}
}

// TestRecordRateLimited_ByType はレート制限の種別ごとにカウントされることを検証する。
func TestRecordRateLimited_ByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimited("login")
	c.RecordRateLimited("login")
	c.RecordRateLimited("general")

	if v := findMetric(t, reg, "usergate_rate_limited_total", map[string]string{"limit_type": "login"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("login = %v, want 2", v)
	}
	if v := findMetric(t, reg, "usergate_rate_limited_total", map[string]string{"limit_type": "general"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("general = %v, want 1", v)
	}
}

// TestRecordCSRFRejection_IncrementsCounter はCSRF拒否カウンタが増加することを検証する。
func TestRecordCSRFRejection_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCSRFRejection()

	if v := findMetric(t, reg, "usergate_csrf_rejected_total", nil).GetCounter().GetValue(); v != 1 {
		t.Errorf("csrf_rejected_total = %v, want 1", v)
	}
}

// TestRecordHTTPStatus_ByStatusCode はステータスコード別にカウントされることを検証する。
func TestRecordHTTPStatus_ByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(302)
	c.RecordHTTPStatus(302)
	c.RecordHTTPStatus(403)

	if v := findMetric(t, reg, "usergate_http_status_total", map[string]string{"status_code": "302"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("302 = %v, want 2", v)
	}
	if v := findMetric(t, reg, "usergate_http_status_total", map[string]string{"status_code": "403"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("403 = %v, want 1", v)
	}
}

// TestRecordRequestLatency_Observes はヒストグラムに観測値が記録されることを検証する。
func TestRecordRequestLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	h := findMetric(t, reg, "usergate_request_duration_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.149 || h.GetSampleSum() > 0.151 {
		t.Errorf("sample sum = %v, want ~0.15", h.GetSampleSum())
	}
}

// TestRecordSessionsCleaned_Adds は削除件数が加算されることを検証する。
func TestRecordSessionsCleaned_Adds(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsCleaned(3)
	c.RecordSessionsCleaned(0)
	c.RecordSessionsCleaned(4)

	if v := findMetric(t, reg, "usergate_sessions_cleaned_total", nil).GetCounter().GetValue(); v != 7 {
		t.Errorf("sessions_cleaned_total = %v, want 7", v)
	}
}
