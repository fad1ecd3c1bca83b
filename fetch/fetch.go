// Package fetch is the replaceable boundary to the remote price-data
// collaborator spec.md §6 names: a client hits an HTTP endpoint and
// converts whatever JSON shape it returns into a data.Series. Only the
// boundary is in scope — the data service itself is out of scope
// (spec.md §1's Non-goals).
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/evdnx/backcast/data"
	"github.com/evdnx/backcast/errs"
	"github.com/evdnx/backcast/logger"
)

// Row is one bar as the remote endpoint encodes it: a date/time string
// plus OHLCV numerics. Volume is a pointer so its absence can be told
// apart from a genuine zero.
type Row struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// envelope covers every documented wrapper key, plus the bare-array
// shape (spec.md §6: "one of {price_data, data, prices, results} or a
// bare list").
type envelope struct {
	PriceData []Row `json:"price_data"`
	Data      []Row `json:"data"`
	Prices    []Row `json:"prices"`
	Results   []Row `json:"results"`
}

// Client fetches OHLCV rows over HTTP and converts them into a
// data.Series. Built on resty the way the rest of the pack's HTTP
// clients are: a shared client with retry/timeout set once at
// construction, one *resty.Request per call.
type Client struct {
	http       *resty.Client
	log        logger.Logger
	dateLayout string
}

// Option configures a Client at construction.
type Option func(*Client)

// WithDateLayout overrides the time.Parse layout used for each row's
// Date field; defaults to RFC3339.
func WithDateLayout(layout string) Option {
	return func(c *Client) { c.dateLayout = layout }
}

// WithTimeout overrides the client's request timeout; defaults to 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// New builds a Client against baseURL.
func New(baseURL string, log logger.Logger, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")

	c := &Client{http: httpClient, log: log, dateLayout: time.RFC3339}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves path and converts the response into a data.Series.
func (c *Client) Fetch(ctx context.Context, path string) (*data.Series, error) {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetch price data: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch price data: status %d: %s", resp.StatusCode(), resp.String())
	}

	rows, err := decodeRows(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("fetch price data: %w", err)
	}
	if len(rows) == 0 {
		return nil, errs.NewConfigurationError("fetch", "response contained no rows")
	}

	return c.toSeries(rows)
}

func decodeRows(body []byte) ([]Row, error) {
	var bare []Row
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch {
	case len(env.PriceData) > 0:
		return env.PriceData, nil
	case len(env.Data) > 0:
		return env.Data, nil
	case len(env.Prices) > 0:
		return env.Prices, nil
	case len(env.Results) > 0:
		return env.Results, nil
	default:
		return nil, nil
	}
}

func (c *Client) toSeries(rows []Row) (*data.Series, error) {
	n := len(rows)
	idx := make([]int64, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closeV := make([]float64, n)
	volume := make([]float64, n)

	for i, row := range rows {
		t, err := time.Parse(c.dateLayout, row.Date)
		if err != nil {
			return nil, errs.NewConfigurationError("fetch", fmt.Sprintf("row %d: unparseable date %q: %v", i, row.Date, err))
		}
		idx[i] = t.Unix()
		open[i] = row.Open
		high[i] = row.High
		low[i] = row.Low
		closeV[i] = row.Close
		if row.Volume != nil {
			volume[i] = *row.Volume
		} else {
			volume[i] = math.NaN()
		}
	}

	if !sort.SliceIsSorted(idx, func(i, j int) bool { return idx[i] < idx[j] }) && c.log != nil {
		c.log.Warn("fetched rows are not date-sorted; data.NewSeries will sort them",
			logger.String("warning_kind", "unsorted_fetch_rows"))
	}

	return data.NewSeries(idx, true, open, high, low, closeV, volume, c.log)
}
