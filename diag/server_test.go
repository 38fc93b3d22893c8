package diag

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/engine"
	"github.com/pthm-cable/agora/sandbox"
	"github.com/pthm-cable/agora/telemetry"
)

// diagFixture runs a sandbox city under regulation for the given number
// of ticks and returns a server wired to both.
func diagFixture(t *testing.T, ticks int) (*Server, *sandbox.City, *engine.Engine) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Telemetry.Enabled = false

	city := sandbox.NewCity(cfg)

	var srv *Server
	eng, err := engine.New(cfg, city, engine.Options{
		OnPrices: func(rows []telemetry.PriceTrace) {
			if srv != nil {
				srv.PushPrices(rows)
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	city.UsePrices(eng)
	srv = New(eng, city)

	for i := 0; i < ticks; i++ {
		city.Step()
		eng.Step()
	}
	return srv, city, eng
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", url, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestMarketEndpoint(t *testing.T) {
	srv, _, _ := diagFixture(t, 30)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var resp struct {
		Tick      int64 `json:"tick"`
		Resources []struct {
			Resource   string  `json:"resource"`
			Supply     float64 `json:"supply"`
			Demand     float64 `json:"demand"`
			Multiplier float64 `json:"multiplier"`
			Vanilla    float64 `json:"vanilla"`
			Price      float64 `json:"price"`
		} `json:"resources"`
	}
	getJSON(t, ts.URL+"/market", &resp)

	if resp.Tick != 30 {
		t.Fatalf("tick = %d, want 30", resp.Tick)
	}
	if len(resp.Resources) == 0 {
		t.Fatal("no resources in market snapshot")
	}

	cfg, _ := config.Load("")
	found := false
	for _, r := range resp.Resources {
		if r.Multiplier < cfg.Market.MinPriceMultiplier-1e-9 || r.Multiplier > cfg.Market.MaxPriceMultiplier+1e-9 {
			t.Errorf("%s multiplier %.4f outside [%.2f, %.2f]",
				r.Resource, r.Multiplier, cfg.Market.MinPriceMultiplier, cfg.Market.MaxPriceMultiplier)
		}
		if r.Vanilla > 0 && math.Abs(r.Price-r.Vanilla*r.Multiplier) > 1e-6 {
			t.Errorf("%s price %.4f != vanilla %.4f * multiplier %.4f", r.Resource, r.Price, r.Vanilla, r.Multiplier)
		}
		if r.Resource == "food" {
			found = true
			if r.Demand <= 0 {
				t.Errorf("food demand = %.4f, want > 0", r.Demand)
			}
			if r.Vanilla <= 0 {
				t.Errorf("food vanilla = %.4f, want > 0", r.Vanilla)
			}
		}
	}
	if !found {
		t.Error("food missing from market snapshot")
	}
}

func TestWagesEndpoint(t *testing.T) {
	srv, _, _ := diagFixture(t, 30)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var resp struct {
		Tick       int64   `json:"tick"`
		Multiplier float64 `json:"multiplier"`
		Disabled   bool    `json:"disabled"`
		Bands      []int   `json:"bands"`
		Baseline   []int   `json:"baseline"`
	}
	getJSON(t, ts.URL+"/wages", &resp)

	if resp.Disabled {
		t.Error("engine reported disabled")
	}
	if len(resp.Bands) != 5 {
		t.Fatalf("got %d bands, want 5", len(resp.Bands))
	}
	for i, w := range resp.Bands {
		if w < 1 {
			t.Errorf("band %d = %d, want >= 1", i, w)
		}
	}
	wantBase := []int{1200, 1500, 1900, 2400, 3000}
	if len(resp.Baseline) != len(wantBase) {
		t.Fatalf("got %d baseline bands, want %d", len(resp.Baseline), len(wantBase))
	}
	for i, w := range wantBase {
		if resp.Baseline[i] != w {
			t.Errorf("baseline[%d] = %d, want %d", i, resp.Baseline[i], w)
		}
	}
	if resp.Multiplier < 0.5 || resp.Multiplier > 1.75 {
		t.Errorf("wage multiplier %.4f outside [0.5, 1.75]", resp.Multiplier)
	}
}

func TestEngineEndpoint(t *testing.T) {
	srv, city, _ := diagFixture(t, 10)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var resp struct {
		Tick              int64 `json:"tick"`
		Disabled          bool  `json:"disabled"`
		TrackedWorkplaces int   `json:"tracked_workplaces"`
		TrackedCompanies  int   `json:"tracked_companies"`
		ResourcesSeen     int   `json:"resources_seen"`
		Watchers          int   `json:"watchers"`
	}
	getJSON(t, ts.URL+"/engine", &resp)

	if resp.Tick != city.Tick() {
		t.Errorf("tick = %d, want %d", resp.Tick, city.Tick())
	}
	if resp.Disabled {
		t.Error("engine reported disabled")
	}
	if resp.TrackedWorkplaces == 0 {
		t.Error("no tracked workplaces after 10 ticks")
	}
	if resp.TrackedCompanies == 0 {
		t.Error("no tracked companies after 10 ticks")
	}
	if resp.ResourcesSeen == 0 {
		t.Error("no resources seen after 10 ticks")
	}
	if resp.Watchers != 0 {
		t.Errorf("watchers = %d, want 0", resp.Watchers)
	}
}

func TestRecordsEndpoint(t *testing.T) {
	srv, _, _ := diagFixture(t, 30)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var resp map[string][]telemetry.RecordEntry
	getJSON(t, ts.URL+"/records", &resp)

	for _, kind := range []string{"surges", "crashes", "charges", "taxes"} {
		entries, ok := resp[kind]
		if !ok {
			t.Errorf("record book missing %s category", kind)
			continue
		}
		for i, e := range entries {
			if e.Magnitude <= 0 {
				t.Errorf("%s[%d] magnitude = %v, want > 0", kind, i, e.Magnitude)
			}
			if e.Tick < 1 {
				t.Errorf("%s[%d] tick = %d, want >= 1", kind, i, e.Tick)
			}
		}
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	srv, city, _ := diagFixture(t, 30)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var snap telemetry.Snapshot
	getJSON(t, ts.URL+"/snapshot", &snap)

	if snap.Version != telemetry.SnapshotVersion {
		t.Errorf("version = %d, want %d", snap.Version, telemetry.SnapshotVersion)
	}
	if snap.Tick != city.Tick() {
		t.Errorf("tick = %d, want %d", snap.Tick, city.Tick())
	}
	if snap.Disabled {
		t.Error("snapshot reports a disabled engine")
	}
	if len(snap.Resources) == 0 {
		t.Fatal("no resources in snapshot")
	}
	for _, r := range snap.Resources {
		if r.Resource == "" {
			t.Error("snapshot entry without a resource name")
		}
	}
	wantBase := []int{1200, 1500, 1900, 2400, 3000}
	if len(snap.Wages.Baseline) != len(wantBase) {
		t.Fatalf("baseline = %v, want %v", snap.Wages.Baseline, wantBase)
	}
	for i, w := range wantBase {
		if snap.Wages.Baseline[i] != w {
			t.Errorf("baseline[%d] = %d, want %d", i, snap.Wages.Baseline[i], w)
		}
	}
}

func TestWatchStreamsPriceBatches(t *testing.T) {
	srv, city, eng := diagFixture(t, 0)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Watchers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		city.Step()
		eng.Step()
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var batch watchBatch
	if err := json.Unmarshal(msg, &batch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if batch.Tick < 1 {
		t.Errorf("batch tick = %d, want >= 1", batch.Tick)
	}
	if len(batch.Prices) == 0 {
		t.Fatal("empty price batch")
	}
	for _, p := range batch.Prices {
		if p.Multiplier <= 0 {
			t.Errorf("%s multiplier = %.4f, want > 0", p.Resource, p.Multiplier)
		}
		if p.Tick != batch.Tick {
			t.Errorf("%s trace tick %d != batch tick %d", p.Resource, p.Tick, batch.Tick)
		}
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for srv.Watchers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never unregistered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	srv, _, _ := diagFixture(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
