package oracle

import (
	"bytes"
	"io"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualFeed(t *testing.T) {
	feed := NewManual()

	_, err := feed.LatestPrice()
	require.ErrorIs(t, err, ErrNoFreshQuote)

	ts := time.Now()
	feed.Set(big.NewInt(300_000_000_000), 8, ts)
	quote, err := feed.LatestPrice()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000_000_000), quote.Price)
	require.Equal(t, uint8(8), quote.Decimals)
	require.Equal(t, "manual", quote.Source)

	// The returned quote is a copy.
	quote.Price.SetInt64(1)
	again, err := feed.LatestPrice()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000_000_000), again.Price)
}

func TestAggregatorPriorityAndFallback(t *testing.T) {
	agg := NewAggregator([]string{"primary", "secondary"}, time.Minute)

	primary := NewManual()
	secondary := NewManual()
	agg.Register("primary", primary)
	agg.Register("secondary", secondary)

	secondary.Set(big.NewInt(200), 8, time.Now())
	quote, err := agg.LatestPrice()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200), quote.Price)

	primary.Set(big.NewInt(100), 8, time.Now())
	quote, err = agg.LatestPrice()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), quote.Price)
}

func TestAggregatorRejectsStaleQuotes(t *testing.T) {
	agg := NewAggregator(nil, time.Minute)
	feed := NewManual()
	agg.Register("only", feed)

	feed.Set(big.NewInt(100), 8, time.Now().Add(-2*time.Minute))
	_, err := agg.LatestPrice()
	require.ErrorIs(t, err, ErrNoFreshQuote)

	feed.Set(big.NewInt(100), 8, time.Now())
	_, err = agg.LatestPrice()
	require.NoError(t, err)
}

func TestAggregatorZeroMaxAgeDisablesFiltering(t *testing.T) {
	agg := NewAggregator(nil, 0)
	feed := NewManual()
	agg.Register("only", feed)

	feed.Set(big.NewInt(100), 8, time.Unix(0, 0))
	_, err := agg.LatestPrice()
	require.NoError(t, err)
}

func TestAggregatorRejectsNonPositivePrices(t *testing.T) {
	agg := NewAggregator(nil, 0)
	feed := NewManual()
	agg.Register("only", feed)

	feed.Set(big.NewInt(0), 8, time.Now())
	_, err := agg.LatestPrice()
	require.Error(t, err)
}

type stubDoer struct {
	status int
	body   string
	err    error
}

func (s stubDoer) Do(req *http.Request) (*http.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewBufferString(s.body)),
	}, nil
}

func TestHTTPFeedParsesQuote(t *testing.T) {
	feed := NewHTTPFeed(stubDoer{
		status: http.StatusOK,
		body:   `{"price":"300000000000","timestamp":1700000000}`,
	}, "http://feed.local/price", "eth/usd", 8)

	quote, err := feed.LatestPrice()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000_000_000), quote.Price)
	require.Equal(t, uint8(8), quote.Decimals)
	require.Equal(t, time.Unix(1_700_000_000, 0), quote.Timestamp)
	require.Equal(t, "http", quote.Source)
}

func TestHTTPFeedRejectsBadResponses(t *testing.T) {
	feed := NewHTTPFeed(stubDoer{status: http.StatusBadGateway, body: "upstream down"}, "http://feed.local/price", "ETH/USD", 8)
	_, err := feed.LatestPrice()
	require.Error(t, err)

	feed = NewHTTPFeed(stubDoer{status: http.StatusOK, body: `{"price":"-5","timestamp":1}`}, "http://feed.local/price", "ETH/USD", 8)
	_, err = feed.LatestPrice()
	require.Error(t, err)

	feed = NewHTTPFeed(stubDoer{status: http.StatusOK, body: "not json"}, "http://feed.local/price", "ETH/USD", 8)
	_, err = feed.LatestPrice()
	require.Error(t, err)
}
