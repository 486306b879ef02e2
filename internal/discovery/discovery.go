// Package discovery selects the tradable symbol universe. The cycle scan
// is cubic in the number of symbols, so the universe is capped to the
// highest-volume pairs within the configured quote assets.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/connectors/redisfeed"
	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

type ticker24h struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
}

// Service handles the discovery of the tradable symbol universe.
type Service struct {
	cfg *config.Config
	log *zap.Logger
	pub *redisfeed.Publisher
}

func NewService(cfg *config.Config, log *zap.Logger) *Service {
	s := &Service{cfg: cfg, log: log}
	if cfg.Redis.Addr != "" {
		s.pub = redisfeed.NewPublisher(cfg)
	}
	return s
}

// Discover fetches 24h tickers, keeps pairs that parse against the quote
// universe and clear the volume floor, and returns the top pairs by quote
// volume. The chosen universe is published to Redis when configured.
func (s *Service) Discover(ctx context.Context) ([]string, error) {
	tickers, err := s.fetchTicker24h(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch 24h tickers: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("empty response on tickers")
	}

	type row struct {
		Sym string
		QV  float64
	}
	rows := make([]row, 0, len(tickers))
	for _, t := range tickers {
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if _, ok := types.ParseSymbol(sym, s.cfg.Universe.QuoteAssets); !ok {
			continue
		}
		lp := toF(t.LastPrice)
		vol := toF(t.Volume)
		qv := toF(t.QuoteVolume)
		if qv <= 0 && lp > 0 && vol > 0 {
			qv = lp * vol
		}
		if qv < s.cfg.Universe.MinQuoteVolume || qv <= 0 {
			continue
		}
		rows = append(rows, row{Sym: sym, QV: qv})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].QV > rows[j].QV })

	limit := s.cfg.Universe.MaxSymbols
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		symbols = append(symbols, r.Sym)
	}
	s.log.Info("symbol universe discovered",
		zap.Int("total", len(tickers)),
		zap.Int("selected", len(symbols)),
	)

	if s.pub != nil {
		if err := s.pub.PublishSymbols(ctx, symbols, time.Now().UnixMilli()); err != nil {
			s.log.Warn("failed to publish symbol universe", zap.Error(err))
		}
	}
	return symbols, nil
}

func (s *Service) fetchTicker24h(ctx context.Context) ([]ticker24h, error) {
	endpoint := s.cfg.Binance.RestURL + "/api/v3/ticker/24hr"
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ticker/24hr status %d", resp.StatusCode)
	}
	var arr []ticker24h
	if err := json.NewDecoder(resp.Body).Decode(&arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func toF(s string) float64 { f, _ := strconv.ParseFloat(s, 64); return f }
