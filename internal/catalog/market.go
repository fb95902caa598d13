package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultMarketURL is the tarkov-market item dump endpoint.
const DefaultMarketURL = "https://api.tarkov-market.app/api/v1/items/all"

// MarketSource loads PvP prices from the tarkov-market REST API. Only items
// carrying one of Tags are kept.
type MarketSource struct {
	URL          string
	APIKey       string
	Tags         []string
	IgnoredItems []string

	fetcher httpFetcher
	logger  *zap.Logger
}

// NewMarketSource constructs a REST catalog source.
func NewMarketSource(logger *zap.Logger, client *http.Client, url, apiKey string, tags, ignored []string, requestsPerMinute int) *MarketSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		url = DefaultMarketURL
	}
	return &MarketSource{
		URL:          url,
		APIKey:       apiKey,
		Tags:         tags,
		IgnoredItems: ignored,
		fetcher:      newHTTPFetcher(client, requestsPerMinute),
		logger:       logger,
	}
}

// Fetch implements Source.
func (s *MarketSource) Fetch(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequest(http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-api-key", s.APIKey)

	data, err := s.fetcher.do(ctx, req)
	if err != nil {
		return nil, err
	}

	items, err := parseMarketItems(data, s.Tags, ignoreSet(s.IgnoredItems))
	if err != nil {
		return nil, err
	}

	s.logger.Info("catalog fetched",
		zap.String("op", "catalog.MarketSource.Fetch"),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func parseMarketItems(data []byte, tags []string, ignored map[string]struct{}) ([]Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON payload", ErrUpstream)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected an item array", ErrUpstream)
	}

	var items []Item
	root.ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		if _, skip := ignored[name]; skip {
			return true
		}
		item := Item{
			ID:             v.Get("uid").String(),
			Name:           name,
			BaseValue:      v.Get("basePrice").Int(),
			MarketCost:     v.Get("price").Int(),
			BannedOnMarket: v.Get("bannedOnFlea").Bool(),
		}
		v.Get("tags").ForEach(func(_, t gjson.Result) bool {
			item.Tags = append(item.Tags, t.String())
			return true
		})
		if len(tags) > 0 && len(FilterByCategories([]Item{item}, tags)) == 0 {
			return true
		}
		items = append(items, item)
		return true
	})

	sortByName(items)
	return items, nil
}
