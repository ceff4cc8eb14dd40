package providers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/logger"
	"golang.org/x/time/rate"
)

// The converter page renders the result amount inside this element. The
// class is an artifact of xe.com's build pipeline; when it churns, override
// it via the provider constructor.
const xeResultClass = "sc-1c293993-1 fxoXHw"

var rateRe = regexp.MustCompile(`^\d+\.\d+`)

// XERateProvider scrapes currency conversion rates from the public xe.com
// converter page.
type XERateProvider struct {
	httpClient  *http.Client
	baseURL     string
	resultClass string
	limiter     *rate.Limiter
}

// NewXERateProvider builds a provider against baseURL. An empty resultClass
// keeps the current known class of the result element.
func NewXERateProvider(baseURL, resultClass string, timeout time.Duration) *XERateProvider {
	if resultClass == "" {
		resultClass = xeResultClass
	}
	return &XERateProvider{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		resultClass: resultClass,
		limiter:     rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}
}

// FetchRate scrapes how many units of to one unit of from buys.
func (p *XERateProvider) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	url := fmt.Sprintf("%s/?Amount=1&From=%s&To=%s",
		p.baseURL, strings.ToUpper(from), strings.ToUpper(to))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate request for %s/%s failed: %w", from, to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("converter page for %s/%s returned status %d", from, to, resp.StatusCode)
	}

	text, found := extractTextByClass(resp.Body, p.resultClass)
	if !found {
		logger.L.Debug("No rate element found on page", "from", from, "to", to)
		return decimal.Zero, ErrNoData
	}

	match := rateRe.FindString(strings.TrimSpace(strings.ReplaceAll(text, ",", "")))
	if match == "" {
		return decimal.Zero, ErrNoData
	}

	rateVal, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable rate %q for %s/%s: %w", match, from, to, err)
	}
	logger.L.Debug("Scraped currency rate", "from", from, "to", to, "rate", rateVal.String())
	return rateVal, nil
}
