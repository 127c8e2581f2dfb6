package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/config"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/pkg/logger"
	"crypto-signal-agent/pkg/utils"
)

const (
	hyperliquidCredibility = 0.9
	perWalletFillLimit     = 20
)

// HyperliquidAdapter polls the Hyperliquid info API for tracked wallets and
// emits their fills, open position snapshots, and a per-wallet performance
// rollup as on-chain records.
type HyperliquidAdapter struct {
	cfg     config.Hyperliquid
	client  *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewHyperliquidAdapter creates a Hyperliquid-backed on-chain adapter.
func NewHyperliquidAdapter(cfg config.Hyperliquid, log *logger.Logger) *HyperliquidAdapter {
	return &HyperliquidAdapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 12 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.MaxRequestPerMinute)/60.0), 2),
		logger:  log,
	}
}

// SourceType returns the source type this adapter produces.
func (a *HyperliquidAdapter) SourceType() entity.SourceType {
	return entity.SourceTypeOnChain
}

type hyperliquidFill struct {
	Coin      string `json:"coin"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	Side      string `json:"side"`
	Time      int64  `json:"time"`
	ClosedPnl string `json:"closedPnl"`
	Hash      string `json:"hash"`
}

type hyperliquidState struct {
	Time           int64 `json:"time"`
	AssetPositions []struct {
		Position struct {
			Coin          string `json:"coin"`
			Szi           string `json:"szi"`
			EntryPx       string `json:"entryPx"`
			UnrealizedPnl string `json:"unrealizedPnl"`
		} `json:"position"`
	} `json:"assetPositions"`
}

// Fetch queries fills and clearinghouse state per tracked wallet.
func (a *HyperliquidAdapter) Fetch(ctx context.Context, profile FetchProfile, limit int) ([]dto.RawRecord, error) {
	if len(profile.TrackedWallets) == 0 {
		return nil, nil
	}

	var records []dto.RawRecord
	failures := 0
	for _, wallet := range profile.TrackedWallets {
		walletRecords, err := a.fetchWallet(ctx, wallet)
		if err != nil {
			failures++
			a.logger.Warn("Failed to fetch hyperliquid wallet",
				logger.StringField("wallet", shortWallet(wallet)), logger.ErrorField(err))
			continue
		}
		records = append(records, walletRecords...)
	}
	if failures == len(profile.TrackedWallets) {
		return nil, fmt.Errorf("%w: all hyperliquid queries failed", ErrSourceUnavailable)
	}

	sortNewestFirst(records)
	return capRecords(records, limit), nil
}

func (a *HyperliquidAdapter) fetchWallet(ctx context.Context, wallet string) ([]dto.RawRecord, error) {
	var fills []hyperliquidFill
	if err := a.post(ctx, map[string]string{"type": "userFills", "user": wallet}, &fills); err != nil {
		return nil, err
	}
	var state hyperliquidState
	if err := a.post(ctx, map[string]string{"type": "clearinghouseState", "user": wallet}, &state); err != nil {
		return nil, err
	}

	var records []dto.RawRecord
	if len(fills) > perWalletFillLimit {
		fills = fills[:perWalletFillLimit]
	}

	realizedTotal := 0.0
	var latestFill int64
	for _, fill := range fills {
		pnl := parseFloat(fill.ClosedPnl)
		realizedTotal += pnl
		if fill.Time > latestFill {
			latestFill = fill.Time
		}
		records = append(records, a.fillRecord(wallet, fill, pnl))
	}

	unrealizedTotal := 0.0
	for _, ap := range state.AssetPositions {
		size := parseFloat(ap.Position.Szi)
		if size == 0 {
			continue
		}
		pnl := parseFloat(ap.Position.UnrealizedPnl)
		unrealizedTotal += pnl
		records = append(records, a.positionRecord(wallet, ap.Position.Coin, size, parseFloat(ap.Position.EntryPx), pnl, state.Time))
	}

	if len(fills) > 0 {
		records = append(records, a.performanceRecord(wallet, len(fills), realizedTotal, unrealizedTotal, latestFill))
	}
	return records, nil
}

func (a *HyperliquidAdapter) fillRecord(wallet string, fill hyperliquidFill, pnl float64) dto.RawRecord {
	side := "buy"
	if fill.Side == "A" || fill.Side == "S" {
		side = "sell"
	}
	summary := fmt.Sprintf("Hyperliquid %s %s %s %s @ %s, rPnL %+.2f",
		shortWallet(wallet), fill.Coin, side, fill.Sz, fill.Px, pnl)

	return dto.RawRecord{
		"timestamp":          fill.Time,
		"summary":            summary,
		"entities":           []string{wallet, fill.Coin, "HYPERLIQUID"},
		"sentiment_score":    pnlSentiment(pnl, 0.25),
		"magnitude_score":    hyperliquidMagnitude(absFloat(pnl), parseFloat(fill.Sz)),
		"source_credibility": hyperliquidCredibility,
		"engagement_score":   0.7,
		"velocity_change":    0.75,
		"source_links":       []string{"https://app.hyperliquid.xyz/trader/" + wallet},
		"event_type":         "fill",
		"realized_pnl":       pnl,
		"wallet":             wallet,
	}
}

func (a *HyperliquidAdapter) positionRecord(wallet, coin string, size, entryPx, pnl float64, ts int64) dto.RawRecord {
	side := "long"
	if size < 0 {
		side = "short"
	}
	summary := fmt.Sprintf("Hyperliquid %s %s %s %.4f @ %.2f, uPnL %+.2f",
		shortWallet(wallet), coin, side, absFloat(size), entryPx, pnl)

	return dto.RawRecord{
		"timestamp":          ts,
		"summary":            summary,
		"entities":           []string{wallet, coin, "HYPERLIQUID"},
		"sentiment_score":    pnlSentiment(pnl, 0.2),
		"magnitude_score":    hyperliquidMagnitude(absFloat(pnl), absFloat(size)),
		"source_credibility": hyperliquidCredibility,
		"engagement_score":   0.6,
		"velocity_change":    0.55,
		"source_links":       []string{"https://app.hyperliquid.xyz/trader/" + wallet},
		"event_type":         "position_snapshot",
		"unrealized_pnl":     pnl,
		"wallet":             wallet,
	}
}

func (a *HyperliquidAdapter) performanceRecord(wallet string, fillCount int, realized, unrealized float64, ts int64) dto.RawRecord {
	summary := fmt.Sprintf("Hyperliquid %s performance: fills=%d, realized=%+.2f, unrealized=%+.2f",
		shortWallet(wallet), fillCount, realized, unrealized)

	return dto.RawRecord{
		"timestamp":          ts,
		"summary":            summary,
		"entities":           []string{wallet, "HYPERLIQUID"},
		"sentiment_score":    pnlSentiment(realized+unrealized, 0.2),
		"magnitude_score":    hyperliquidMagnitude(absFloat(realized)+absFloat(unrealized), 1),
		"source_credibility": hyperliquidCredibility,
		"engagement_score":   utils.Clamp(0.55+minFloat(float64(fillCount), 20)*0.01, 0, 1),
		"velocity_change":    utils.Clamp(0.45+minFloat(float64(fillCount), 20)*0.02, 0, 1),
		"source_links":       []string{"https://app.hyperliquid.xyz/trader/" + wallet},
		"event_type":         "wallet_performance",
		"realized_pnl":       realized,
		"unrealized_pnl":     unrealized,
		"wallet":             wallet,
	}
}

func (a *HyperliquidAdapter) post(ctx context.Context, payload map[string]string, dest interface{}) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.InfoURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hyperliquid returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// hyperliquidMagnitude blends absolute PnL and position size into [0.35, 1].
func hyperliquidMagnitude(absPnl, size float64) float64 {
	pnlComponent := minFloat(absPnl/10_000, 1) * 0.55
	sizeComponent := minFloat(size/5, 1) * 0.25
	return utils.Clamp(0.35+pnlComponent+sizeComponent, 0, 1)
}

func pnlSentiment(pnl, weight float64) float64 {
	if pnl > 0 {
		return weight
	}
	if pnl < 0 {
		return -weight
	}
	return 0
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
