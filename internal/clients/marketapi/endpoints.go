package marketapi

import (
	"context"
	"net/url"
	"time"

	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
)

var (
	_ interfaces.MarketDataAPI = (*Client)(nil)
	_ interfaces.StockDataAPI  = (*Client)(nil)
)

func marketPrefix(region models.Region) string {
	if region == models.RegionIndia {
		return "/market/indian"
	}
	return "/market"
}

// getNormalized fetches path and maps the raw document through normalize.
// Normalization failures surface as decode errors.
func getNormalized[T any](ctx context.Context, c *Client, path string, query url.Values, normalize func(any) (T, error)) (T, error) {
	var zero T
	var doc any
	if err := c.Get(ctx, path, query, &doc); err != nil {
		return zero, err
	}
	out, err := normalize(doc)
	if err != nil {
		return zero, &HTTPError{Kind: KindDecode, Message: err.Error(), Method: "GET", Path: path, Err: err}
	}
	return out, nil
}

// GetMarketOverview retrieves the tracked index snapshots
func (c *Client) GetMarketOverview(ctx context.Context, region models.Region) ([]models.MarketSnapshot, error) {
	return getNormalized(ctx, c, marketPrefix(region)+"/overview", nil, func(doc any) ([]models.MarketSnapshot, error) {
		return normalizeSnapshots(doc, c.logger)
	})
}

// GetSectorPerformance retrieves sector proxy performance
func (c *Client) GetSectorPerformance(ctx context.Context) ([]models.SectorPerformance, error) {
	return getNormalized(ctx, c, "/market/sectors", nil, func(doc any) ([]models.SectorPerformance, error) {
		return normalizeSectors(doc, c.logger)
	})
}

// GetTopGainers retrieves the top gainers in server order
func (c *Client) GetTopGainers(ctx context.Context) ([]models.Mover, error) {
	return getNormalized(ctx, c, "/market/gainers", nil, func(doc any) ([]models.Mover, error) {
		return normalizeMovers(doc, c.logger)
	})
}

// GetMovers retrieves gainers or losers
func (c *Client) GetMovers(ctx context.Context, region models.Region, moverType models.MoverType) ([]models.Mover, error) {
	mt, err := models.ParseMoverType(string(moverType))
	if err != nil {
		return nil, err
	}
	query := url.Values{"type": {string(mt)}}
	return getNormalized(ctx, c, marketPrefix(region)+"/movers", query, func(doc any) ([]models.Mover, error) {
		return normalizeMovers(doc, c.logger)
	})
}

// GetSector retrieves the stocks of one sector
func (c *Client) GetSector(ctx context.Context, region models.Region, name string) ([]models.Mover, error) {
	path := marketPrefix(region) + "/sector/" + url.PathEscape(name)
	return getNormalized(ctx, c, path, nil, func(doc any) ([]models.Mover, error) {
		return normalizeMovers(doc, c.logger)
	})
}

// GetQuote retrieves one quote. The returned Timestamp is the time of
// normalization; callers that own a clock may overwrite it.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.StockQuote, error) {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return getNormalized(ctx, c, "/stock/quote/"+url.PathEscape(sym), nil, func(doc any) (*models.StockQuote, error) {
		q, err := normalizeQuote(doc, sym)
		if err != nil {
			return nil, err
		}
		q.Timestamp = time.Now()
		return q, nil
	})
}

// GetHistory retrieves OHLCV bars. The period is validated before any request.
func (c *Client) GetHistory(ctx context.Context, symbol string, period models.Period) (*models.StockHistory, error) {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	p, err := models.ParsePeriod(string(period))
	if err != nil {
		return nil, err
	}
	query := url.Values{"period": {string(p)}}
	return getNormalized(ctx, c, "/stock/history/"+url.PathEscape(sym), query, func(doc any) (*models.StockHistory, error) {
		return normalizeHistory(doc, sym, p, c.logger)
	})
}

// SearchStocks searches symbols and names
func (c *Client) SearchStocks(ctx context.Context, query string) ([]models.SearchResult, error) {
	return getNormalized(ctx, c, "/stock/search", url.Values{"q": {query}}, func(doc any) ([]models.SearchResult, error) {
		return normalizeSearch(doc, c.logger)
	})
}
