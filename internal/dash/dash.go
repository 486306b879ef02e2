// Package dash serves a small live view of the latest scan: the cycles
// found, their scored profit, and the outcome of any execution attempt.
package dash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

type Row struct {
	Path      string  `json:"path"`
	ProfitPct float64 `json:"profitPct"`

	Rate1 float64 `json:"rate1"`
	Rate2 float64 `json:"rate2"`
	Rate3 float64 `json:"rate3"`

	Status    string `json:"status"`
	FailedLeg int    `json:"failedLeg,omitempty"`
	Reason    string `json:"reason,omitempty"`

	TS int64 `json:"ts"`
}

type Store struct {
	mu   sync.RWMutex
	rows map[string]Row // key: cycle path
}

func NewStore() *Store { return &Store{rows: make(map[string]Row, 64)} }

// UpdateOpportunity records a freshly scored cycle; status resets to
// "found" until an execution result arrives for the same path.
func (s *Store) UpdateOpportunity(opp types.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := opp.Cycle.Path()
	s.rows[path] = Row{
		Path:      path,
		ProfitPct: opp.ProfitPct,
		Rate1:     opp.Rates[0],
		Rate2:     opp.Rates[1],
		Rate3:     opp.Rates[2],
		Status:    "found",
		TS:        time.Now().UnixMilli(),
	}
}

// UpdateResult overlays the execution outcome onto the cycle's row.
func (s *Store) UpdateResult(res types.TradeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := res.Cycle.Path()
	row := s.rows[path]
	row.Path = path
	row.Status = string(res.Status)
	row.FailedLeg = res.FailedLeg
	if res.FailedLeg > 0 && res.FailedLeg <= len(res.Legs) {
		row.Reason = res.Legs[res.FailedLeg-1].Reason
	}
	row.TS = time.Now().UnixMilli()
	s.rows[path] = row
}

func (s *Store) List() []Row {
	s.mu.RLock()
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProfitPct == out[j].ProfitPct {
			return out[i].Path < out[j].Path
		}
		return out[i].ProfitPct > out[j].ProfitPct
	})
	return out
}

func StartHTTP(ctx context.Context, s *Store, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dash", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.List())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexHTML)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() { <-ctx.Done(); _ = srv.Close() }()

	log.Info("dashboard listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("dashboard server error", zap.Error(err))
	}
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>Triangular Arbitrage Monitor</title>
  <style>
    body{margin:0;background:#f8fafc;font:14px/1.4 ui-sans-serif,system-ui;color:#111827;}
    .wrap{max-width:960px;margin:24px auto;padding:0 16px;}
    table{width:100%;border-collapse:collapse;background:#fff;border-radius:12px;overflow:hidden;box-shadow:0 10px 30px rgba(0,0,0,.06);}
    thead{background:#f3f4f6;} th,td{padding:10px 14px;text-align:left;} tbody tr{border-top:1px solid #f3f4f6;}
    .pct{padding:2px 8px;border-radius:8px;font-size:12px;}
    .pct.ok{background:#dcfce7;color:#166534;} .pct.bad{background:#fee2e2;color:#991b1b;}
    .chip{display:inline-block;font-size:12px;padding:2px 8px;background:#e5e7eb;border-radius:999px;color:#374151;}
  </style>
</head>
<body>
<div class="wrap">
  <h1 style="font-size:22px;font-weight:600">Triangular Arbitrage Monitor</h1>
  <table>
    <thead><tr><th>Path</th><th>Profit</th><th>Rates</th><th>Status</th><th style="text-align:right">Updated</th></tr></thead>
    <tbody id="rows"></tbody>
  </table>
</div>
<script>
  function pct(x){ return (x==null||isNaN(x)) ? '—' : (Number(x).toFixed(4)+'%'); }
  function rowHTML(r){
    var st = r.status + (r.failedLeg ? (' @ leg '+r.failedLeg) : '');
    return '<tr>'
      + '<td><strong>' + (r.path||'') + '</strong></td>'
      + '<td><span class="pct ' + ((r.profitPct||0) > 0 ? 'ok':'bad') + '">' + pct(r.profitPct) + '</span></td>'
      + '<td>' + [r.rate1,r.rate2,r.rate3].map(function(x){return Number(x).toPrecision(6)}).join(' · ') + '</td>'
      + '<td><span class="chip">' + st + '</span></td>'
      + '<td style="text-align:right;color:#6B7280;font-size:12px">' + new Date(r.ts||Date.now()).toLocaleTimeString() + '</td>'
      + '</tr>';
  }
  async function tick(){
    try{
      var res = await fetch('/api/dash', {cache:'no-store'});
      if(!res.ok) throw new Error('status '+res.status);
      var data = await res.json();
      document.getElementById('rows').innerHTML = data.map(rowHTML).join('');
    }catch(e){}
  }
  tick(); setInterval(tick, 1000);
</script>
</body>
</html>`
