package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/logger"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// A valid browser User-Agent is required or the quote pages serve a stub.
const scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// The quote page renders the latest price inside this element.
const googleQuoteClass = "YMlKec fxKbKc"

var priceRe = regexp.MustCompile(`\d+\.\d{2}`)

// GoogleFinanceProvider scrapes the latest traded price from the public
// Google Finance quote page for TICKER:EXCHANGE.
type GoogleFinanceProvider struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewGoogleFinanceProvider builds a provider against baseURL (the production
// quote page, or an httptest server in tests). Requests are throttled so
// exchange-resolution loops stay polite.
func NewGoogleFinanceProvider(baseURL string, timeout time.Duration) *GoogleFinanceProvider {
	return &GoogleFinanceProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}
}

// FetchPrice scrapes the price of ticker on exchange. Any failure — network,
// bad status, unparseable page — comes back as an error; the caller decides
// whether a stale cached value can stand in.
func (p *GoogleFinanceProvider) FetchPrice(ctx context.Context, ticker, exchange string) (decimal.Decimal, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	url := fmt.Sprintf("%s/%s:%s", p.baseURL, strings.ToUpper(ticker), strings.ToUpper(exchange))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote request for %s:%s failed: %w", ticker, exchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("quote page for %s:%s returned status %d", ticker, exchange, resp.StatusCode)
	}

	text, found := extractTextByClass(resp.Body, googleQuoteClass)
	if !found {
		logger.L.Debug("No quote element found on page", "ticker", ticker, "exchange", exchange)
		return decimal.Zero, ErrNoData
	}

	// Prices above a thousand carry thousands separators.
	match := priceRe.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return decimal.Zero, ErrNoData
	}

	price, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable price %q for %s:%s: %w", match, ticker, exchange, err)
	}
	logger.L.Debug("Scraped stock price", "ticker", ticker, "exchange", exchange, "price", price.String())
	return price, nil
}

// extractTextByClass walks an HTML document and returns the concatenated text
// of the first element whose class attribute equals class. The bool result
// reports whether such an element exists.
func extractTextByClass(r io.Reader, class string) (string, bool) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", false
	}

	var target *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if target != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "class" && a.Val == class {
					target = n
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if target == nil {
		return "", false
	}

	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(target)
	return sb.String(), true
}
