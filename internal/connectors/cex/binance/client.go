// Package binance implements the exchange collaborator interfaces against
// the Binance spot REST and websocket APIs.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

type Client struct {
	cfg  *config.Config
	log  *zap.Logger
	http *http.Client
}

func NewClient(cfg *config.Config, log *zap.Logger) (*Client, error) {
	return &Client{cfg: cfg, log: log, http: &http.Client{Timeout: 6 * time.Second}}, nil
}

type tickerPriceResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// TickerPrices fetches the last price for every tradable symbol.
func (c *Client) TickerPrices(ctx context.Context) (types.PriceSnapshot, error) {
	endpoint := c.cfg.Binance.RestURL + "/api/v3/ticker/price"
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ticker/price %d: %s", resp.StatusCode, string(b))
	}
	var arr []tickerPriceResp
	if err := json.NewDecoder(resp.Body).Decode(&arr); err != nil {
		return nil, err
	}
	snap := make(types.PriceSnapshot, len(arr))
	for _, t := range arr {
		p, err := strconv.ParseFloat(t.Price, 64)
		if err != nil || p <= 0 {
			continue
		}
		snap[strings.ToUpper(t.Symbol)] = p
	}
	return snap, nil
}

// CurrentPrice fetches the live quote for one symbol. Unknown symbols map
// to types.ErrSymbolNotFound.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := c.cfg.Binance.RestURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(symbol)
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return 0, c.apiErr("ticker/price", symbol, resp)
	}
	var t tickerPriceResp
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return 0, err
	}
	p, err := strconv.ParseFloat(t.Price, 64)
	if err != nil || p <= 0 {
		return 0, fmt.Errorf("ticker/price %s: bad price %q", symbol, t.Price)
	}
	return p, nil
}

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			StepSize   string `json:"stepSize"`
			MinQty     string `json:"minQty"`
			MaxQty     string `json:"maxQty"`
		} `json:"filters"`
	} `json:"symbols"`
}

// LotSizeRule fetches the LOT_SIZE filter for one symbol from
// /api/v3/exchangeInfo.
func (c *Client) LotSizeRule(ctx context.Context, symbol string) (types.LotSizeRule, error) {
	endpoint := c.cfg.Binance.RestURL + "/api/v3/exchangeInfo?symbol=" + url.QueryEscape(symbol)
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return types.LotSizeRule{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return types.LotSizeRule{}, c.apiErr("exchangeInfo", symbol, resp)
	}
	var info exchangeInfoResp
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return types.LotSizeRule{}, err
	}
	if len(info.Symbols) == 0 {
		return types.LotSizeRule{}, fmt.Errorf("%w: %s", types.ErrSymbolNotFound, symbol)
	}
	for _, f := range info.Symbols[0].Filters {
		if f.FilterType != "LOT_SIZE" {
			continue
		}
		step, _ := strconv.ParseFloat(f.StepSize, 64)
		minQ, _ := strconv.ParseFloat(f.MinQty, 64)
		maxQ, _ := strconv.ParseFloat(f.MaxQty, 64)
		return types.LotSizeRule{StepSize: step, MinQty: minQ, MaxQty: maxQ}, nil
	}
	return types.LotSizeRule{}, fmt.Errorf("no LOT_SIZE filter for %s: %w", symbol, types.ErrSymbolNotFound)
}

// SubmitMarketOrder places a market sell of qty base units. Cycle legs are
// all base-to-quote conversions, so the side is fixed.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, qty float64) (types.FillConfirmation, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", trim(qty))
	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	params.Set("recvWindow", "5000")
	params.Set("signature", c.sign(params.Encode()))

	endpoint := c.cfg.Binance.RestURL + "/api/v3/order"
	req, _ := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(params.Encode()))
	req.Header.Set("X-MBX-APIKEY", c.cfg.Binance.ApiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.FillConfirmation{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return types.FillConfirmation{}, fmt.Errorf("order %d: %s", resp.StatusCode, string(body))
	}

	var ord struct {
		OrderID             json.Number `json:"orderId"`
		Status              string      `json:"status"`
		ExecutedQty         string      `json:"executedQty"`
		CummulativeQuoteQty string      `json:"cummulativeQuoteQty"`
	}
	if err := json.Unmarshal(body, &ord); err != nil {
		return types.FillConfirmation{}, err
	}

	var execQty, cummQuote float64
	fmt.Sscan(ord.ExecutedQty, &execQty)
	fmt.Sscan(ord.CummulativeQuoteQty, &cummQuote)
	if execQty <= 0 {
		return types.FillConfirmation{}, fmt.Errorf("order %s %s: nothing executed (status %s)",
			ord.OrderID.String(), symbol, ord.Status)
	}

	fill := types.FillConfirmation{
		OrderID:   ord.OrderID.String(),
		FilledQty: execQty,
		AvgPrice:  cummQuote / execQty,
	}
	c.log.Info("market order filled",
		zap.String("order_id", fill.OrderID),
		zap.String("symbol", symbol),
		zap.Float64("executed_qty", fill.FilledQty),
		zap.Float64("avg_price", fill.AvgPrice),
	)
	return fill, nil
}

// AssetBalance returns the free and locked amounts of one asset from the
// signed account endpoint.
func (c *Client) AssetBalance(ctx context.Context, asset string) (free, locked float64, err error) {
	params := url.Values{}
	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	params.Set("recvWindow", "5000")
	params.Set("signature", c.sign(params.Encode()))

	endpoint := c.cfg.Binance.RestURL + "/api/v3/account?" + params.Encode()
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	req.Header.Set("X-MBX-APIKEY", c.cfg.Binance.ApiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return 0, 0, fmt.Errorf("account %d: %s", resp.StatusCode, string(b))
	}

	var acct struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return 0, 0, err
	}
	for _, b := range acct.Balances {
		if strings.EqualFold(b.Asset, asset) {
			fmt.Sscan(b.Free, &free)
			fmt.Sscan(b.Locked, &locked)
			return free, locked, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: asset %s", types.ErrSymbolNotFound, asset)
}

// apiErr decodes Binance's error envelope; code -1121 is "Invalid symbol".
func (c *Client) apiErr(op, symbol string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Code == -1121 {
		return fmt.Errorf("%w: %s", types.ErrSymbolNotFound, symbol)
	}
	return fmt.Errorf("%s %s %d: %s", op, symbol, resp.StatusCode, string(body))
}

func (c *Client) sign(q string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.Binance.ApiSecret))
	mac.Write([]byte(q))
	return hex.EncodeToString(mac.Sum(nil))
}

func trim(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", v), "0"), ".")
}
