package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	logrtesting "github.com/go-logr/logr/testing"
	"github.com/google/go-cmp/cmp"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/panel"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/panel/paneltest"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/publicip"
)

// fakeIPService answers with the address set last.
type fakeIPService struct {
	mu sync.Mutex
	ip string
}

func (f *fakeIPService) set(ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ip = ip
}

func (f *fakeIPService) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ip == "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte(f.ip + "\n"))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func countCalls(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestDynamicUpdateFollowsPublicIP(t *testing.T) {
	fake := paneltest.New("alice", "s3cret")
	fake.AddRecord("example.com", dns.Record{ID: "7", Type: "A", Name: "www", Content: "1.2.3.4"})
	fake.AddRecord("example.com", dns.Record{ID: "8", Type: "AAAA", Name: "www", Content: "2001:db8::1"})
	fake.AddRecord("example.com", dns.Record{ID: "", Type: "A", Name: "", Content: "1.2.3.4"})
	fake.AddRecord("example.org", dns.Record{ID: "21", Type: "A", Name: "www", Content: "1.2.3.4"})
	panelSrv := httptest.NewServer(fake)
	defer panelSrv.Close()

	primary := &fakeIPService{}
	secondary := &fakeIPService{ip: "203.0.113.10"}
	primarySrv := httptest.NewServer(primary)
	defer primarySrv.Close()
	secondarySrv := httptest.NewServer(secondary)
	defer secondarySrv.Close()

	providers, err := publicip.NewProviders([]string{primarySrv.URL, secondarySrv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log := logrtesting.NewTestLogger(t)
	m := metrics.New()
	watcher, err := publicip.NewWatcher(log.WithName("watcher"), providers, 20*time.Millisecond, publicip.WithMetrics(m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reconciler := &controller.UpdateReconciler{
		Log: log.WithName("update"),
		Dial: func(ctx context.Context) (controller.SyncSession, error) {
			s, err := panel.Dial(ctx, log.WithName("panel"), panelSrv.URL, "alice", "s3cret")
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Domains: []string{"example.com", "example.org"},
		Filter:  dns.NewFilter([]string{"A"}, []string{"www"}),
		Metrics: m,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx, reconciler.Reconcile)
	}()

	// The primary source is down, so the secondary's answer is used.
	waitFor(t, "first update", func() bool {
		return fake.Records("example.org")[0].Content == "203.0.113.10"
	})
	want := []dns.Record{
		{ID: "7", Type: "A", Name: "www", Content: "203.0.113.10"},
		{ID: "8", Type: "AAAA", Name: "www", Content: "2001:db8::1"},
		{ID: "", Type: "A", Name: "", Content: "1.2.3.4"},
	}
	if diff := cmp.Diff(want, fake.Records("example.com")); diff != "" {
		t.Errorf("example.com records mismatch (-want +got):\n%s", diff)
	}

	// Once the primary answers it takes precedence.
	primary.set("198.51.100.20")
	waitFor(t, "second update", func() bool {
		return fake.Records("example.org")[0].Content == "198.51.100.20"
	})
	if got := fake.Records("example.com")[0].Content; got != "198.51.100.20" {
		t.Errorf("expected example.com www updated, got %q", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}

	calls := fake.Calls()
	if n := countCalls(calls, "POST /services/logon/"); n != 2 {
		t.Errorf("expected one login per IP change, got %d", n)
	}
	if n := countCalls(calls, "POST /modules/ffdns/"); n != 4 {
		t.Errorf("expected four record updates, got %d", n)
	}
}

func TestDynamicUpdateSurvivesPanelFailure(t *testing.T) {
	fake := paneltest.New("alice", "s3cret")
	fake.AddRecord("example.com", dns.Record{ID: "7", Type: "A", Name: "www", Content: "1.2.3.4"})
	fake.RejectUpdates("quota exceeded")
	panelSrv := httptest.NewServer(fake)
	defer panelSrv.Close()

	ipSvc := &fakeIPService{ip: "203.0.113.10"}
	ipSrv := httptest.NewServer(ipSvc)
	defer ipSrv.Close()

	p, err := publicip.NewHTTPProvider(ipSrv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log := logrtesting.NewTestLogger(t)
	watcher, err := publicip.NewWatcher(log, []publicip.Provider{p}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reconciler := &controller.UpdateReconciler{
		Log: log,
		Dial: func(ctx context.Context) (controller.SyncSession, error) {
			s, err := panel.Dial(ctx, log, panelSrv.URL, "alice", "s3cret")
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Domains: []string{"example.com"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx, reconciler.Reconcile)
	}()

	waitFor(t, "rejected update", func() bool {
		return countCalls(fake.Calls(), "POST /modules/ffdns/") == 1
	})

	// A rejected update is not retried for the same address, but the next
	// change is handled.
	fake.RejectUpdates("")
	time.Sleep(100 * time.Millisecond)
	if n := countCalls(fake.Calls(), "POST /modules/ffdns/"); n != 1 {
		t.Errorf("expected no retry for the same address, got %d updates", n)
	}
	ipSvc.set("203.0.113.11")
	waitFor(t, "update after next change", func() bool {
		return fake.Records("example.com")[0].Content == "203.0.113.11"
	})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
