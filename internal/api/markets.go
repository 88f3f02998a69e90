package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// endCursor marks the final page of a cursor-paginated listing.
const endCursor = "LTE="

// GetOK checks that the CLOB API is reachable.
func (c *Client) GetOK(ctx context.Context) error {
	if _, err := c.doWithRetry(ctx, http.MethodGet, "/", nil, nil); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// GetServerTime fetches the exchange clock in unix seconds.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, "/time", nil, nil)
	if err != nil {
		return 0, fmt.Errorf("get server time: %w", err)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse server time %q: %w", body, err)
	}
	return ts, nil
}

// GetMarkets fetches one page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsPage, error) {
	query := url.Values{}
	if opts.NextCursor != "" {
		query.Set("next_cursor", opts.NextCursor)
	}

	var page MarketsPage
	if err := c.get(ctx, "/markets", query, &page); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	return &page, nil
}

// GetAllMarkets fetches every market by walking the cursor chain.
// Uses DefaultPaginationTimeout if the context has no deadline.
func (c *Client) GetAllMarkets(ctx context.Context) ([]APIMarket, error) {
	return c.paginate(ctx, c.GetMarkets)
}

// GetSamplingMarkets fetches one page of markets with active reward
// sampling, a much smaller set than the full listing.
func (c *Client) GetSamplingMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsPage, error) {
	query := url.Values{}
	if opts.NextCursor != "" {
		query.Set("next_cursor", opts.NextCursor)
	}

	var page MarketsPage
	if err := c.get(ctx, "/sampling-markets", query, &page); err != nil {
		return nil, fmt.Errorf("get sampling markets: %w", err)
	}
	return &page, nil
}

// GetAllSamplingMarkets fetches every sampling market by walking the
// cursor chain. Uses DefaultPaginationTimeout if the context has no
// deadline.
func (c *Client) GetAllSamplingMarkets(ctx context.Context) ([]APIMarket, error) {
	return c.paginate(ctx, c.GetSamplingMarkets)
}

// paginate walks a cursor-paginated listing to the end marker.
func (c *Client) paginate(ctx context.Context, fetch func(context.Context, GetMarketsOptions) (*MarketsPage, error)) ([]APIMarket, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var all []APIMarket
	var opts GetMarketsOptions

	for {
		page, err := fetch(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Data...)

		if page.NextCursor == "" || page.NextCursor == endCursor {
			break
		}
		opts.NextCursor = page.NextCursor
	}

	return all, nil
}

// GetMarket fetches a single market by condition ID.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*APIMarket, error) {
	var market APIMarket
	if err := c.get(ctx, "/markets/"+conditionID, nil, &market); err != nil {
		return nil, fmt.Errorf("get market %s: %w", conditionID, err)
	}
	return &market, nil
}

// GetBook fetches the order book summary for one token.
func (c *Client) GetBook(ctx context.Context, tokenID string) (*OrderBookSummary, error) {
	query := url.Values{}
	query.Set("token_id", tokenID)

	var book OrderBookSummary
	if err := c.get(ctx, "/book", query, &book); err != nil {
		return nil, fmt.Errorf("get book %s: %w", tokenID, err)
	}
	return &book, nil
}

// GetBooks fetches order book summaries for several tokens in one call.
func (c *Client) GetBooks(ctx context.Context, tokenIDs []string) ([]OrderBookSummary, error) {
	params := make([]BookParams, len(tokenIDs))
	for i, id := range tokenIDs {
		params[i] = BookParams{TokenID: id}
	}

	var books []OrderBookSummary
	if err := c.post(ctx, "/books", params, &books); err != nil {
		return nil, fmt.Errorf("get books: %w", err)
	}
	return books, nil
}

// GetMidpoint fetches the book midpoint for one token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("token_id", tokenID)

	var resp MidpointResponse
	if err := c.get(ctx, "/midpoint", query, &resp); err != nil {
		return decimal.Decimal{}, fmt.Errorf("get midpoint %s: %w", tokenID, err)
	}
	return resp.Mid, nil
}

// GetLastTradePrice fetches the most recent trade price for one token.
func (c *Client) GetLastTradePrice(ctx context.Context, tokenID string) (*PriceResponse, error) {
	query := url.Values{}
	query.Set("token_id", tokenID)

	var resp PriceResponse
	if err := c.get(ctx, "/last-trade-price", query, &resp); err != nil {
		return nil, fmt.Errorf("get last trade price %s: %w", tokenID, err)
	}
	return &resp, nil
}
