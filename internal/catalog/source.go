package catalog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Source loads the full item catalog from somewhere.
type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// ErrUpstream marks failures reported by a remote catalog.
var ErrUpstream = errors.New("catalog upstream error")

func ignoreSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

// httpFetcher is shared by the remote sources: it throttles requests and
// decodes compressed bodies.
type httpFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPFetcher(client *http.Client, requestsPerMinute int) httpFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), requestsPerMinute)
	}
	return httpFetcher{client: client, limiter: limiter}
}

func (f httpFetcher) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := f.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		body = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, upstreamMessage(data))
	}
	return data, nil
}

func upstreamMessage(data []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if len(payload.Errors) > 0 && payload.Errors[0].Message != "" {
			return payload.Errors[0].Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// FileSource reads a JSON catalog snapshot from disk. Both a bare item array
// and the {"data": [...], "timestamp": ...} envelope are accepted.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s FileSource) Fetch(_ context.Context) ([]Item, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return DecodeItems(data)
}

// DecodeItems parses a JSON catalog in either supported shape.
func DecodeItems(data []byte) ([]Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to decode catalog: invalid JSON")
	}
	raw := gjson.ParseBytes(data)
	if !raw.IsArray() {
		raw = raw.Get("data")
	}
	if !raw.IsArray() {
		return nil, fmt.Errorf("failed to decode catalog: expected an item array")
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw.Raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return items, nil
}
