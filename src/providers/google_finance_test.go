package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/stockfolio/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func quotePage(price string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><body>
	<main><div class="outer"><div class="YMlKec fxKbKc">%s</div></div></main>
	</body></html>`, price)
}

func TestFetchPrice_ParsesQuoteElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/AAPL:NASDAQ", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, quotePage("$189.84"))
	}))
	defer srv.Close()

	p := NewGoogleFinanceProvider(srv.URL, 5*time.Second)
	price, err := p.FetchPrice(context.Background(), "aapl", "nasdaq")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("189.84")), "price = %s", price)
}

func TestFetchPrice_StripsThousandsSeparators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage("$1,234.56"))
	}))
	defer srv.Close()

	p := NewGoogleFinanceProvider(srv.URL, 5*time.Second)
	price, err := p.FetchPrice(context.Background(), "BRK.A", "NYSE")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1234.56")))
}

func TestFetchPrice_MissingQuoteElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="something-else">no quote here</div></body></html>`)
	}))
	defer srv.Close()

	p := NewGoogleFinanceProvider(srv.URL, 5*time.Second)
	_, err := p.FetchPrice(context.Background(), "GHOST", "NASDAQ")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchPrice_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewGoogleFinanceProvider(srv.URL, 5*time.Second)
	_, err := p.FetchPrice(context.Background(), "GHOST", "NASDAQ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchPrice_UnparseableQuoteText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage("N/A"))
	}))
	defer srv.Close()

	p := NewGoogleFinanceProvider(srv.URL, 5*time.Second)
	_, err := p.FetchPrice(context.Background(), "HALT", "NYSE")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestExtractTextByClass(t *testing.T) {
	page := `<html><body>
	<div class="a"><span class="target">first</span></div>
	<div class="target">second</div>
	</body></html>`

	text, found := extractTextByClass(strings.NewReader(page), "target")
	require.True(t, found)
	assert.Equal(t, "first", text)

	_, found = extractTextByClass(strings.NewReader(page), "absent")
	assert.False(t, found)
}
