package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Quote captures a USD price for the native currency along with the timestamp
// reported by the upstream feed and the feed identifier. Price is expressed as
// an integer scaled by 10^Decimals, matching the Chainlink convention.
type Quote struct {
	Price     *big.Int
	Decimals  uint8
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q Quote) Clone() Quote {
	clone := Quote{Decimals: q.Decimals, Timestamp: q.Timestamp, Source: q.Source}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	return clone
}

// PriceOracle resolves the current USD price of the native currency.
type PriceOracle interface {
	LatestPrice() (Quote, error)
}

// ErrNoFreshQuote indicates that no feed produced a valid quote within the
// configured freshness window.
var ErrNoFreshQuote = errors.New("oracle: no fresh quote available")

// Aggregator consults a list of registered feeds in priority order until a
// fresh, positive quote is obtained.
type Aggregator struct {
	mu       sync.RWMutex
	priority []string
	feeds    map[string]PriceOracle
	maxAge   time.Duration
}

// NewAggregator constructs an aggregator with the provided priority ordering
// and freshness window. A zero maxAge disables staleness filtering.
func NewAggregator(priority []string, maxAge time.Duration) *Aggregator {
	return &Aggregator{
		priority: append([]string{}, priority...),
		feeds:    make(map[string]PriceOracle),
		maxAge:   maxAge,
	}
}

// SetMaxAge updates the freshness window used when filtering quotes.
func (a *Aggregator) SetMaxAge(maxAge time.Duration) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.maxAge = maxAge
	a.mu.Unlock()
}

// Register adds or replaces a feed under the supplied identifier. Identifiers
// are stored in lowercase so lookups remain consistent regardless of the
// configuration casing.
func (a *Aggregator) Register(name string, feed PriceOracle) {
	if a == nil {
		return
	}
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feeds[trimmed] = feed
	for _, entry := range a.priority {
		if strings.EqualFold(entry, trimmed) {
			return
		}
	}
	a.priority = append(a.priority, trimmed)
}

// LatestPrice fetches a quote from the configured feeds respecting the
// priority ordering and the freshness window. The returned quote is a
// defensive copy of the upstream value.
func (a *Aggregator) LatestPrice() (Quote, error) {
	if a == nil {
		return Quote{}, fmt.Errorf("oracle: aggregator not configured")
	}
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	maxAge := a.maxAge
	a.mu.RUnlock()

	cutoff := time.Time{}
	if maxAge > 0 {
		cutoff = time.Now().Add(-maxAge)
	}

	var lastErr error
	for _, name := range priority {
		a.mu.RLock()
		feed := a.feeds[strings.ToLower(name)]
		a.mu.RUnlock()
		if feed == nil {
			continue
		}
		quote, err := feed.LatestPrice()
		if err != nil {
			lastErr = err
			continue
		}
		if quote.Price == nil || quote.Price.Sign() <= 0 {
			lastErr = fmt.Errorf("oracle: feed %s returned invalid price", name)
			continue
		}
		if maxAge > 0 && quote.Timestamp.Before(cutoff) {
			lastErr = ErrNoFreshQuote
			continue
		}
		result := quote.Clone()
		if strings.TrimSpace(result.Source) == "" {
			result.Source = strings.ToLower(name)
		}
		return result, nil
	}

	if lastErr == nil {
		lastErr = ErrNoFreshQuote
	}
	return Quote{}, lastErr
}

// Manual provides an in-memory oracle implementation used for tests and
// manual overrides during incident response.
type Manual struct {
	mu    sync.RWMutex
	quote Quote
	set   bool
}

// NewManual constructs an empty manual oracle instance.
func NewManual() *Manual {
	return &Manual{}
}

// Set stores the provided price quote.
func (m *Manual) Set(price *big.Int, decimals uint8, ts time.Time) {
	if m == nil || price == nil {
		return
	}
	m.mu.Lock()
	m.quote = Quote{Price: new(big.Int).Set(price), Decimals: decimals, Timestamp: ts, Source: "manual"}
	m.set = true
	m.mu.Unlock()
}

// LatestPrice retrieves the stored quote.
func (m *Manual) LatestPrice() (Quote, error) {
	if m == nil {
		return Quote{}, fmt.Errorf("oracle: manual feed not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return Quote{}, ErrNoFreshQuote
	}
	return m.quote.Clone(), nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed fetches price data from a JSON endpoint that reports a price and a
// unix timestamp, e.g. an aggregator sidecar or a Chainlink proxy.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	symbol   string
	decimals uint8
}

// NewHTTPFeed constructs an HTTP feed adapter. When the client is nil
// http.DefaultClient is used.
func NewHTTPFeed(client HTTPDoer, endpoint, symbol string, decimals uint8) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{
		client:   client,
		endpoint: strings.TrimSpace(endpoint),
		symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		decimals: decimals,
	}
}

func (f *HTTPFeed) LatestPrice() (Quote, error) {
	if f == nil || f.endpoint == "" {
		return Quote{}, fmt.Errorf("oracle: http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	values := url.Values{}
	values.Set("symbol", f.symbol)
	req.URL.RawQuery = values.Encode()
	resp, err := f.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("oracle: http feed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Price     string `json:"price"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("oracle: http feed decode: %w", err)
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(payload.Price), 10)
	if !ok || price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("oracle: http feed invalid price %q", payload.Price)
	}
	return Quote{
		Price:     price,
		Decimals:  f.decimals,
		Timestamp: time.Unix(payload.Timestamp, 0),
		Source:    "http",
	}, nil
}
