// Package diag serves read-only diagnostics for a running engine over
// HTTP: JSON snapshots of the market, the wage bands and the engine
// internals, plus a websocket stream of per-tick price traces. Handlers
// read live engine state; numbers can be one tick stale against the
// host loop.
package diag

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/engine"
	"github.com/pthm-cable/agora/host"
	"github.com/pthm-cable/agora/market"
	"github.com/pthm-cable/agora/telemetry"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second

	// Per-watcher send buffer. A watcher that falls further behind than
	// this starts losing batches, never the tick.
	watchBuffer = 64
)

// Server exposes one engine and its host. All endpoints are GET-only in
// effect; nothing here mutates regulation state.
type Server struct {
	eng *engine.Engine
	h   host.Host

	upgrader websocket.Upgrader

	mu       sync.Mutex
	watchers map[chan []byte]struct{}
	draining bool
}

// New builds a server over the given engine and host. Wire PushPrices
// as the engine's OnPrices hook to feed the /watch stream.
func New(eng *engine.Engine, h host.Host) *Server {
	return &Server{
		eng: eng,
		h:   h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		watchers: make(map[chan []byte]struct{}),
	}
}

// Handler returns the route table. Usable directly under httptest or
// mounted into a larger mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/market", s.handleMarket)
	mux.HandleFunc("/wages", s.handleWages)
	mux.HandleFunc("/engine", s.handleEngine)
	mux.HandleFunc("/records", s.handleRecords)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/watch", s.handleWatch)
	return mux
}

// Serve blocks until ctx is canceled, then closes the watch streams,
// drains in-flight requests and returns. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	slog.Info("diagnostics listening", "addr", addr)

	select {
	case <-ctx.Done():
		s.closeWatchers()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(ctx2); err != nil {
			return err
		}
		if err := <-errc; err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// watchBatch is one /watch frame: every price trace the engine emitted
// for a single tick.
type watchBatch struct {
	Tick   int64                  `json:"tick"`
	Prices []telemetry.PriceTrace `json:"prices"`
}

// PushPrices fans a tick's price traces out to every connected watcher.
// Meant as the engine's OnPrices hook; the engine reuses the slice, so
// the batch is serialized before this returns. Slow watchers lose
// batches rather than stalling the tick.
func (s *Server) PushPrices(rows []telemetry.PriceTrace) {
	if len(rows) == 0 {
		return
	}
	s.mu.Lock()
	idle := len(s.watchers) == 0
	s.mu.Unlock()
	if idle {
		return
	}

	b, err := json.Marshal(watchBatch{Tick: rows[0].Tick, Prices: rows})
	if err != nil {
		return
	}

	s.mu.Lock()
	for ch := range s.watchers {
		select {
		case ch <- b:
		default:
		}
	}
	s.mu.Unlock()
}

// Watchers reports the current /watch connection count.
func (s *Server) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// closeWatchers detaches and closes every watcher channel so their
// writer goroutines send a going-away close and stop.
func (s *Server) closeWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draining = true
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		market.ResourceView
		Multiplier  float64 `json:"multiplier"`
		UpdatedTick int64   `json:"updated_tick,omitempty"`
		Vanilla     float64 `json:"vanilla,omitempty"`
		Price       float64 `json:"price,omitempty"`
	}

	cache := s.eng.Multipliers()
	catalog := s.h.Prices()

	// Ledger views are name-keyed; walk the enumeration once to line
	// the multiplier states and vanilla prices up with them.
	states := make(map[string]market.PriceState)
	vanillas := make(map[string]float64)
	for _, res := range econ.Resources() {
		if st, ok := cache.State(res); ok {
			states[res.String()] = st
		}
		if catalog == nil {
			continue
		}
		if v, ok := catalog.VanillaPrice(res); ok {
			vanillas[res.String()] = v
		}
	}

	views := s.eng.Ledger().Snapshot()
	out := make([]entry, 0, len(views))
	for _, v := range views {
		e := entry{ResourceView: v, Multiplier: 1}
		if st, ok := states[v.Name]; ok {
			e.Multiplier = st.Multiplier
			e.UpdatedTick = st.UpdatedTick
		}
		if vanilla, ok := vanillas[v.Name]; ok {
			e.Vanilla = vanilla
			e.Price = vanilla * e.Multiplier
		}
		out = append(out, e)
	}

	writeJSON(w, map[string]any{
		"tick":      s.h.Clock().Tick,
		"resources": out,
	})
}

func (s *Server) handleWages(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"tick":       s.h.Clock().Tick,
		"multiplier": s.eng.WageMultiplier(),
		"disabled":   s.eng.Disabled(),
	}

	if bands := s.h.Wages(); bands != nil {
		var current [host.WageLevels]int
		for i := range current {
			current[i] = bands.Wage(i)
		}
		resp["bands"] = current
	}
	if base, ok := s.eng.WageBaseline(); ok {
		resp["baseline"] = base
	}

	writeJSON(w, resp)
}

func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	perf := s.eng.PerfStats()

	phases := make(map[string]any, len(perf.PhaseAvg))
	for name, avg := range perf.PhaseAvg {
		phases[name] = map[string]any{
			"avg_us": avg.Microseconds(),
			"pct":    perf.PhasePct[name],
		}
	}

	writeJSON(w, map[string]any{
		"tick":               s.h.Clock().Tick,
		"disabled":           s.eng.Disabled(),
		"tracked_workplaces": s.eng.TrackedWorkplaces(),
		"tracked_companies":  s.eng.TrackedCompanies(),
		"resources_seen":     s.eng.Lifetime().Count(),
		"watchers":           s.Watchers(),
		"perf": map[string]any{
			"avg_tick_us":   perf.AvgTickDuration.Microseconds(),
			"min_tick_us":   perf.MinTickDuration.Microseconds(),
			"max_tick_us":   perf.MaxTickDuration.Microseconds(),
			"ticks_per_sec": perf.TicksPerSecond,
			"phases":        phases,
		},
	})
}

// handleRecords reports the run's extreme-moment record book, keyed by
// category.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.eng.Records())
}

// handleSnapshot serves the full engine-state document, the same form
// the bookmark detector saves to disk.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.eng.Snapshot())
}

// handleWatch upgrades to a websocket and streams one JSON frame per
// tick that adjusted at least one price. The stream is send-only;
// inbound messages are read and discarded to notice the peer leaving.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	out := make(chan []byte, watchBuffer)
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		return
	}
	s.watchers[out] = struct{}{}
	s.mu.Unlock()

	// Writer goroutine. Ends when out closes or the conn breaks, then
	// forces the read deadline so the reader loop below unblocks.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for b := range out {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				break
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "closing"),
			time.Now().Add(time.Second))
		_ = conn.SetReadDeadline(time.Now())
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Detach before closing so PushPrices cannot send on a closed
	// channel. closeWatchers may have detached this watcher already.
	s.mu.Lock()
	if _, ok := s.watchers[out]; ok {
		delete(s.watchers, out)
		s.mu.Unlock()
		close(out)
	} else {
		s.mu.Unlock()
	}

	// Best-effort wait so the writer does not outlive conn.
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
