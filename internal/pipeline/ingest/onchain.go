package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/config"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/pkg/logger"
	"crypto-signal-agent/pkg/utils"
)

const (
	weiPerEth          = 1e18
	perWalletTxLimit   = 10
	onChainCredibility = 0.92
)

// OnChainAdapter polls the Etherscan account txlist endpoint for each tracked
// wallet and turns transfers into raw on-chain records.
type OnChainAdapter struct {
	cfg     config.Etherscan
	client  *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewOnChainAdapter creates an Etherscan-backed on-chain adapter.
func NewOnChainAdapter(cfg config.Etherscan, log *logger.Logger) *OnChainAdapter {
	return &OnChainAdapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 12 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.MaxRequestPerMinute)/60.0), 1),
		logger:  log,
	}
}

// SourceType returns the source type this adapter produces.
func (a *OnChainAdapter) SourceType() entity.SourceType {
	return entity.SourceTypeOnChain
}

type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanTx struct {
	TimeStamp string `json:"timeStamp"`
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
}

// Fetch queries the most recent transactions per tracked wallet. Without an
// API key or tracked wallets the adapter is a no-op for the cycle.
func (a *OnChainAdapter) Fetch(ctx context.Context, profile FetchProfile, limit int) ([]dto.RawRecord, error) {
	if a.cfg.APIKey == "" || len(profile.TrackedWallets) == 0 {
		return nil, nil
	}

	var records []dto.RawRecord
	failures := 0
	for _, wallet := range profile.TrackedWallets {
		txs, err := a.fetchWalletTxs(ctx, wallet)
		if err != nil {
			failures++
			a.logger.Warn("Failed to fetch wallet transactions",
				logger.StringField("wallet", shortWallet(wallet)), logger.ErrorField(err))
			continue
		}
		for _, tx := range txs {
			if record := txToRecord(wallet, tx); record != nil {
				records = append(records, record)
			}
		}
	}
	if failures == len(profile.TrackedWallets) {
		return nil, fmt.Errorf("%w: all wallet queries failed", ErrSourceUnavailable)
	}

	sortNewestFirst(records)
	return capRecords(records, limit), nil
}

func (a *OnChainAdapter) fetchWalletTxs(ctx context.Context, wallet string) ([]etherscanTx, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", wallet)
	params.Set("sort", "desc")
	params.Set("offset", strconv.Itoa(perWalletTxLimit))
	params.Set("page", "1")
	params.Set("apikey", a.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etherscan returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed etherscanResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode etherscan response: %w", err)
	}

	var txs []etherscanTx
	if err := json.Unmarshal(parsed.Result, &txs); err != nil {
		// Etherscan reports errors as a string result.
		return nil, fmt.Errorf("etherscan error: %s", parsed.Message)
	}
	return txs, nil
}

// txToRecord converts one transfer into a raw record; zero-value transfers
// are skipped.
func txToRecord(wallet string, tx etherscanTx) dto.RawRecord {
	valueWei, err := strconv.ParseFloat(tx.Value, 64)
	if err != nil || valueWei <= 0 {
		return nil
	}

	valueEth := valueWei / weiPerEth
	direction := "inflow"
	if equalAddress(tx.From, wallet) {
		direction = "outflow"
	}

	summary := fmt.Sprintf("Tracked wallet %s %s %.2f ETH", shortWallet(wallet), direction, valueEth)
	if tx.To != "" {
		summary += fmt.Sprintf(" to %s", shortWallet(tx.To))
	}

	entities := []string{"ETH"}
	seen := map[string]struct{}{}
	for _, addr := range []string{wallet, tx.From, tx.To} {
		lowered := strings.ToLower(addr)
		if addr == "" {
			continue
		}
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		entities = append(entities, addr)
	}

	var links []string
	if tx.Hash != "" {
		links = []string{"https://etherscan.io/tx/" + tx.Hash}
	}

	return dto.RawRecord{
		"timestamp":          tx.TimeStamp,
		"summary":            summary,
		"entities":           entities,
		"sentiment_score":    0.0,
		"magnitude_score":    utils.Clamp(0.35+minFloat(valueEth/500, 0.65), 0, 1),
		"source_credibility": onChainCredibility,
		"engagement_score":   0.65,
		"velocity_change":    utils.Clamp(0.45+minFloat(valueEth/1000, 0.4), 0, 1),
		"source_links":       links,
		"direction":          direction,
		"value_eth":          valueEth,
	}
}

func equalAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
