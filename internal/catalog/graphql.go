package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Game modes served by the GraphQL catalog.
const (
	ModePVE = "pve"
	ModePVP = "pvp"
)

// DefaultGraphQLURL is the public tarkov.dev endpoint.
const DefaultGraphQLURL = "https://api.tarkov.dev/graphql"

const graphQLItemsQuery = `{
  items(gameMode: %s) {
    id
    name
    basePrice
    lastLowPrice
    updated
    types
    categories {
      normalizedName
    }
  }
}`

// GraphQLSource loads items from the tarkov.dev GraphQL API.
type GraphQLSource struct {
	URL          string
	Mode         string
	IgnoredItems []string

	fetcher httpFetcher
	logger  *zap.Logger
}

// NewGraphQLSource constructs a GraphQL catalog source. requestsPerMinute
// throttles outgoing calls; zero disables throttling.
func NewGraphQLSource(logger *zap.Logger, client *http.Client, url, mode string, ignored []string, requestsPerMinute int) *GraphQLSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		url = DefaultGraphQLURL
	}
	if mode == "" {
		mode = ModePVE
	}
	return &GraphQLSource{
		URL:          url,
		Mode:         mode,
		IgnoredItems: ignored,
		fetcher:      newHTTPFetcher(client, requestsPerMinute),
		logger:       logger,
	}
}

// Fetch implements Source.
func (s *GraphQLSource) Fetch(ctx context.Context) ([]Item, error) {
	gameMode := "regular"
	if s.Mode == ModePVE {
		gameMode = "pve"
	}

	body, err := json.Marshal(map[string]string{
		"query": fmt.Sprintf(graphQLItemsQuery, gameMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	s.logger.Debug("requesting catalog",
		zap.String("op", "catalog.GraphQLSource.Fetch"),
		zap.String("url", s.URL),
		zap.String("mode", s.Mode),
	)

	data, err := s.fetcher.do(ctx, req)
	if err != nil {
		return nil, err
	}

	items, err := parseGraphQLItems(data, ignoreSet(s.IgnoredItems))
	if err != nil {
		return nil, err
	}

	s.logger.Info("catalog fetched",
		zap.String("op", "catalog.GraphQLSource.Fetch"),
		zap.String("mode", s.Mode),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func parseGraphQLItems(data []byte, ignored map[string]struct{}) ([]Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON payload", ErrUpstream)
	}
	root := gjson.ParseBytes(data)
	if errs := root.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, errs.Get("0.message").String())
	}
	list := root.Get("data.items")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: invalid data structure", ErrUpstream)
	}

	var items []Item
	list.ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		if _, skip := ignored[name]; skip {
			return true
		}
		item := Item{
			ID:        v.Get("id").String(),
			Name:      name,
			BaseValue: v.Get("basePrice").Int(),
		}
		// A null lastLowPrice means the item is not listed; cost stays 0.
		if price := v.Get("lastLowPrice"); price.Type == gjson.Number {
			item.MarketCost = price.Int()
		}
		if updated := v.Get("updated").String(); updated != "" {
			if ts, err := time.Parse(time.RFC3339, updated); err == nil {
				item.Updated = ts
			}
		}
		v.Get("types").ForEach(func(_, t gjson.Result) bool {
			if t.String() == "noFlea" {
				item.BannedOnMarket = true
				return false
			}
			return true
		})
		v.Get("categories").ForEach(func(_, c gjson.Result) bool {
			if tag := c.Get("normalizedName").String(); tag != "" {
				item.Tags = append(item.Tags, tag)
			}
			return true
		})
		items = append(items, item)
		return true
	})

	sortByName(items)
	return items, nil
}

func sortByName(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		return strings.ToLower(items[a].Name) < strings.ToLower(items[b].Name)
	})
}
