package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// Data API pagination limits.
const (
	positionsPageSize = 500
	activityPageSize  = 500
	maxActivityPages  = 20
)

// DataClient is the REST client for the Polymarket Data API, which serves
// per-wallet positions and activity plus the public leaderboard. All calls
// share one client-side rate limiter so parallel wallet scans cannot trip the
// upstream limit.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDataClient creates a new Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
// rps caps outgoing requests per second; zero disables client-side limiting.
func NewDataClient(baseURL string, rps float64) *DataClient {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
	}
}

// GetPositions returns all current open positions for the wallet, following
// pagination until a short page.
func (d *DataClient) GetPositions(ctx context.Context, wallet string) ([]domain.Position, error) {
	var positions []domain.Position

	for offset := 0; ; offset += positionsPageSize {
		params := url.Values{}
		params.Set("user", wallet)
		params.Set("limit", strconv.Itoa(positionsPageSize))
		params.Set("offset", strconv.Itoa(offset))

		body, err := d.doGet(ctx, "/positions?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("polymarket/data: get positions %s: %w", wallet, err)
		}

		var page []APIPosition
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
		}

		for i := range page {
			if page[i].Size <= 0 {
				continue
			}
			positions = append(positions, page[i].ToDomainPosition())
		}
		if len(page) < positionsPageSize {
			return positions, nil
		}
	}
}

// GetActivity returns the wallet's trading activity newest first, up to
// maxRows rows (0 means everything within the page cap).
func (d *DataClient) GetActivity(ctx context.Context, wallet string, maxRows int) ([]APIActivity, error) {
	var activity []APIActivity

	for page := 0; page < maxActivityPages; page++ {
		params := url.Values{}
		params.Set("user", wallet)
		params.Set("limit", strconv.Itoa(activityPageSize))
		params.Set("offset", strconv.Itoa(page*activityPageSize))

		body, err := d.doGet(ctx, "/activity?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("polymarket/data: get activity %s: %w", wallet, err)
		}

		var rows []APIActivity
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("polymarket/data: decode activity: %w", err)
		}

		activity = append(activity, rows...)
		if maxRows > 0 && len(activity) >= maxRows {
			return activity[:maxRows], nil
		}
		if len(rows) < activityPageSize {
			return activity, nil
		}
	}
	return activity, nil
}

// GetLeaderboard returns the top wallets ranked by the given field ("pnl" or
// "vol") over the given window ("1d", "7d", "30d", "all").
func (d *DataClient) GetLeaderboard(ctx context.Context, rankBy, window string, limit int) ([]APILeaderboardEntry, error) {
	params := url.Values{}
	params.Set("rankBy", rankBy)
	params.Set("window", window)
	params.Set("limit", strconv.Itoa(limit))

	body, err := d.doGet(ctx, "/leaderboard?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get leaderboard: %w", err)
	}

	var entries []APILeaderboardEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode leaderboard: %w", err)
	}
	return entries, nil
}

// doGet waits for the rate limiter and sends an unauthenticated GET.
func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
