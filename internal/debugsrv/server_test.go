package debugsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/renderer"
	"github.com/vango-dev/vrender/pkg/telemetry"
)

func setup(t *testing.T) (*renderer.Renderer, http.Handler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	doc := htmldom.New()
	r, err := renderer.New(doc, renderer.WithMetrics(telemetry.NewMetrics(telemetry.WithRegistry(reg))))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		r.Close()
	})

	_, err = r.Apply(context.Background(), &protocol.Batch{Seq: 1, Mutations: []protocol.Mutation{
		protocol.NewPushRoot(0),
		protocol.NewCreateElement("ul", 1),
		protocol.NewCreateElement("li", 2),
		protocol.NewCreateTextNode("a", 3),
		protocol.NewAppendChildren(1),
		protocol.NewCreateElement("li", 4),
		protocol.NewCreateTextNode("b", 5),
		protocol.NewAppendChildren(1),
		protocol.NewAppendChildren(2),
		protocol.NewAppendChildren(1),
		protocol.NewEventListener("click", 1),
	}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	h := Handler(r, doc, Config{
		Gatherer: reg,
		Session:  func() any { return map[string]int{"batches": 1} },
	})
	return r, h
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r, h := setup(t)

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	_, _ = r.Apply(context.Background(), &protocol.Batch{Seq: 2, Mutations: []protocol.Mutation{protocol.NewRemove(99)}})
	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "faulted") {
		t.Errorf("faulted healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSnapshotAndQuery(t *testing.T) {
	_, h := setup(t)

	rec := get(t, h, "/snapshot")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<ul><li>a</li><li>b</li></ul>") {
		t.Fatalf("snapshot = %d %s", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "/query?xpath="+url.QueryEscape("//li"))
	if rec.Code != http.StatusOK {
		t.Fatalf("query = %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Count   int      `json:"count"`
		Matches []string `json:"matches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || out.Matches[1] != "<li>b</li>" {
		t.Errorf("query result = %+v", out)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/query", http.StatusBadRequest},
		{"/query?xpath=" + url.QueryEscape("//li["), http.StatusBadRequest},
		{"/query?xpath=" + url.QueryEscape("//table"), http.StatusOK},
	}
	for _, tt := range tests {
		if rec := get(t, h, tt.path); rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestNodesAndMetrics(t *testing.T) {
	_, h := setup(t)

	rec := get(t, h, "/nodes")
	if rec.Code != http.StatusOK {
		t.Fatalf("nodes = %d", rec.Code)
	}
	var stats renderer.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Registry.Live != 6 || stats.Registrations != 1 || stats.LastSeq != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.Listeners) != 1 || stats.Listeners[0] != "click" {
		t.Errorf("listeners = %v", stats.Listeners)
	}

	rec = get(t, h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "vrender_live_nodes 6") {
		t.Errorf("metrics = %d\n%s", rec.Code, rec.Body.String())
	}

	if rec := get(t, h, "/session"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"batches":1`) {
		t.Errorf("session = %d %s", rec.Code, rec.Body.String())
	}
}
