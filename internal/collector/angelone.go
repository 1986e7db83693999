package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"MarketSync/internal/model"
)

const angelOneBaseURL = "https://apiconnect.angelone.in"

// AngelOneFetcher implements Fetcher using the SmartAPI historical candle API.
type AngelOneFetcher struct {
	BaseURL      string
	APIKey       string
	AccessToken  string
	Exchange     string            // e.g. NSE
	SymbolTokens map[string]string // ticker → SmartAPI symbol token
	LocalIP      string
	PublicIP     string
	MACAddress   string
	Location     *time.Location
	Client       *http.Client
}

// NewAngelOneFetcher creates a new fetcher with optional proxy support.
func NewAngelOneFetcher(apiKey, accessToken, exchange string, tokens map[string]string, proxyURL string, loc *time.Location) *AngelOneFetcher {
	if loc == nil {
		loc = time.UTC
	}
	if exchange == "" {
		exchange = "NSE"
	}
	return &AngelOneFetcher{
		BaseURL:      angelOneBaseURL,
		APIKey:       apiKey,
		AccessToken:  accessToken,
		Exchange:     exchange,
		SymbolTokens: tokens,
		LocalIP:      "127.0.0.1",
		PublicIP:     "127.0.0.1",
		MACAddress:   "00:00:00:00:00:00",
		Location:     loc,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: proxyTransport(proxyURL),
		},
	}
}

func (f *AngelOneFetcher) Name() string { return "angelone" }

func angelOneInterval(g model.Granularity) string {
	switch g {
	case model.Daily:
		return "ONE_DAY"
	case model.Hourly:
		return "ONE_HOUR"
	default:
		return "FIVE_MINUTE"
	}
}

// candleRequest is the getCandleData payload; dates use "yyyy-MM-dd HH:mm".
type candleRequest struct {
	Exchange    string `json:"exchange"`
	SymbolToken string `json:"symboltoken"`
	Interval    string `json:"interval"`
	FromDate    string `json:"fromdate"`
	ToDate      string `json:"todate"`
}

// candleResponse rows are [timestamp, open, high, low, close, volume].
type candleResponse struct {
	Status    bool                `json:"status"`
	Message   string              `json:"message"`
	ErrorCode string              `json:"errorcode"`
	Data      [][]json.RawMessage `json:"data"`
}

func (f *AngelOneFetcher) Fetch(ctx context.Context, symbol string, window model.SyncWindow, g model.Granularity) ([]model.Bar, error) {
	if window.Empty() {
		return nil, nil
	}
	token, ok := f.SymbolTokens[symbol]
	if !ok {
		return nil, fmt.Errorf("angelone: no symbol token configured for %s", symbol)
	}

	const layout = "2006-01-02 15:04"
	payload, err := json.Marshal(candleRequest{
		Exchange:    f.Exchange,
		SymbolToken: token,
		Interval:    angelOneInterval(g),
		FromDate:    window.Start.In(f.Location).Format(layout),
		ToDate:      window.End.In(f.Location).Format(layout),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := f.BaseURL + "/rest/secure/angelbroking/historical/v1/getCandleData"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.AccessToken)
	req.Header.Set("X-PrivateKey", f.APIKey)
	req.Header.Set("X-ClientLocalIP", f.LocalIP)
	req.Header.Set("X-ClientPublicIP", f.PublicIP)
	req.Header.Set("X-MACAddress", f.MACAddress)
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch candles: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result candleResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("angelone api error %s: %s", result.ErrorCode, result.Message)
	}

	bars := make([]model.Bar, 0, len(result.Data))
	for _, row := range result.Data {
		bar, err := f.parseCandle(row, g)
		if err != nil {
			return nil, err
		}
		if window.Contains(bar.Time) {
			bars = append(bars, bar)
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (f *AngelOneFetcher) parseCandle(row []json.RawMessage, g model.Granularity) (model.Bar, error) {
	if len(row) < 6 {
		return model.Bar{}, fmt.Errorf("decode candles: row has %d fields", len(row))
	}
	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return model.Bar{}, fmt.Errorf("decode candle time: %w", err)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return model.Bar{}, fmt.Errorf("decode candle time: %w", err)
	}

	values := make([]decimal.Decimal, 5)
	for i := range values {
		d, err := decimal.NewFromString(string(bytes.TrimSpace(row[i+1])))
		if err != nil {
			return model.Bar{}, fmt.Errorf("decode candle value %q: %w", row[i+1], err)
		}
		values[i] = d
	}
	return model.Bar{
		Time:   g.Normalize(t.In(f.Location)),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4].IntPart(),
	}, nil
}
