package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ledger-core/internal/core/domain"

	"github.com/shopspring/decimal"
)

// HTTPProvider fetches quotes from a JSON endpoint of the form
// GET {base}?from=BTC&to=USD -> {"rate":"50000.12","bid":"...","ask":"..."}.
// Bid, ask, volume_24h and change_24h are optional; a missing bid/ask
// defaults to the mid rate.
type HTTPProvider struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against one upstream endpoint. A nil
// client gets a 10s-timeout default.
func NewHTTPProvider(name, baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{name: name, baseURL: baseURL, client: client}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) FetchRate(ctx context.Context, from, to string) (domain.RateQuote, error) {
	q := url.Values{"from": {from}, "to": {to}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.RateQuote{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.RateQuote{}, fmt.Errorf("provider %s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.RateQuote{}, fmt.Errorf("provider %s: unexpected status %d", p.name, resp.StatusCode)
	}

	var body struct {
		Rate      string `json:"rate"`
		Bid       string `json:"bid"`
		Ask       string `json:"ask"`
		Volume24h string `json:"volume_24h"`
		Change24h string `json:"change_24h"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.RateQuote{}, fmt.Errorf("provider %s: decoding response: %w", p.name, err)
	}

	rate, err := decimal.NewFromString(body.Rate)
	if err != nil {
		return domain.RateQuote{}, fmt.Errorf("provider %s: bad rate %q: %w", p.name, body.Rate, err)
	}
	if rate.Sign() <= 0 {
		return domain.RateQuote{}, fmt.Errorf("provider %s: non-positive rate %s", p.name, rate)
	}

	bid, ask := rate, rate
	if body.Bid != "" {
		if bid, err = decimal.NewFromString(body.Bid); err != nil {
			return domain.RateQuote{}, fmt.Errorf("provider %s: bad bid %q: %w", p.name, body.Bid, err)
		}
	}
	if body.Ask != "" {
		if ask, err = decimal.NewFromString(body.Ask); err != nil {
			return domain.RateQuote{}, fmt.Errorf("provider %s: bad ask %q: %w", p.name, body.Ask, err)
		}
	}
	if bid.Sign() <= 0 || ask.LessThan(bid) {
		return domain.RateQuote{}, fmt.Errorf("provider %s: crossed quote bid=%s ask=%s", p.name, bid, ask)
	}

	quote := domain.RateQuote{
		From:      from,
		To:        to,
		Rate:      rate,
		Bid:       bid,
		Ask:       ask,
		Provider:  p.name,
		FetchedAt: time.Now().UTC(),
	}
	if body.Volume24h != "" {
		volume, err := decimal.NewFromString(body.Volume24h)
		if err != nil {
			return domain.RateQuote{}, fmt.Errorf("provider %s: bad volume %q: %w", p.name, body.Volume24h, err)
		}
		quote.Volume24h = &volume
	}
	if body.Change24h != "" {
		change, err := decimal.NewFromString(body.Change24h)
		if err != nil {
			return domain.RateQuote{}, fmt.Errorf("provider %s: bad change %q: %w", p.name, body.Change24h, err)
		}
		quote.Change24h = &change
	}
	return quote, nil
}
