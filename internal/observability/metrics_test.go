package observability

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(testLogger)
	m.ItemsAccepted.Add(3)
	m.EnrichFailed.Add(1)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE newsgoat_items_accepted_total counter",
		"newsgoat_items_accepted_total 3",
		"newsgoat_enrich_failed_total 1",
		"newsgoat_sources_total 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in exposition:\n%s", want, body)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(testLogger)
	m.SourcesTotal.Add(5)
	m.SourcesFailed.Add(1)

	snap := m.Snapshot()
	if snap["sources"] != 5 || snap["sources_failed"] != 1 {
		t.Errorf("unexpected snapshot %v", snap)
	}
}
