package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(body)
}

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()
	r.Visits.Inc()
	r.Visits.Inc()
	r.Rejected.WithLabelValues("origin").Inc()
	r.PeerFrames.WithLabelValues("out").Add(3)

	out := scrape(t, r)
	for _, want := range []string{
		"wsmesh_hub_visits_total 2",
		`wsmesh_hub_rejected_total{reason="origin"} 1`,
		`wsmesh_peer_frames_total{direction="out"} 3`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestRegistry_GaugeFunc(t *testing.T) {
	r := NewRegistry()
	n := 0.0
	r.GaugeFunc("hub", "connections", "Open connections", func() float64 { return n })

	n = 7
	if out := scrape(t, r); !strings.Contains(out, "wsmesh_hub_connections 7") {
		t.Errorf("gauge not sampled at scrape time:\n%s", out)
	}
}

func TestCollector(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewCollector("peer", "link_up", "Peer link state", "node", func() map[string]float64 {
		return map[string]float64{"n1": 1, "n2": 0}
	}))

	out := scrape(t, r)
	for _, want := range []string{`wsmesh_peer_link_up{node="n1"} 1`, `wsmesh_peer_link_up{node="n2"} 0`} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestRegistry_Independent(t *testing.T) {
	// Separate registries must not collide on registration.
	a, b := NewRegistry(), NewRegistry()
	a.Logins.Inc()
	if strings.Contains(scrape(t, b), "wsmesh_hub_logins_total 1") {
		t.Error("registries share state")
	}
}
