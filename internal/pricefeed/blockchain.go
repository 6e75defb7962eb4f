package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
	amount "github.com/rpgo/btc-annuity/pkg/decimal"
)

// DefaultBlockchainURL is the full-history market price chart.
const DefaultBlockchainURL = "https://api.blockchain.info/charts/market-price?timespan=all&sampled=false&format=json"

// BlockchainSource fetches history from the blockchain.info charts API.
type BlockchainSource struct {
	URL     string
	Client  *fasthttp.Client
	Timeout time.Duration
}

// NewBlockchainSource returns a source for DefaultBlockchainURL.
func NewBlockchainSource() *BlockchainSource {
	return &BlockchainSource{
		URL:     DefaultBlockchainURL,
		Client:  &fasthttp.Client{Name: "btcannuity"},
		Timeout: 30 * time.Second,
	}
}

type chartResponse struct {
	Status string `json:"status"`
	Values []struct {
		X int64   `json:"x"`
		Y float64 `json:"y"`
	} `json:"values"`
}

func (s *BlockchainSource) Load(ctx context.Context) ([]domain.PricePoint, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.URL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := s.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := s.Client
	if client == nil {
		client = &fasthttp.Client{}
	}
	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("failed to fetch price chart: %w", err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("price chart returned status %d", code)
	}

	var chart chartResponse
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, fmt.Errorf("failed to decode price chart: %w", err)
	}
	if chart.Values == nil {
		return nil, fmt.Errorf("price chart response has no values")
	}

	points := make([]domain.PricePoint, 0, len(chart.Values))
	for _, v := range chart.Values {
		price, err := amount.FromFloat(v.Y)
		if err != nil {
			continue
		}
		points = append(points, domain.PricePoint{
			Date:  dateutil.FromTime(time.Unix(v.X, 0)),
			Price: price,
		})
	}

	points = Normalize(points)
	if len(points) == 0 {
		return nil, ErrNoPrices
	}
	return points, nil
}
