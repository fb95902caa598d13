// Package server exposes the circle service over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/cultist-circle/internal/circle"
	"github.com/iwvelando/cultist-circle/pkg/constants"
	"github.com/iwvelando/cultist-circle/pkg/output"
	"github.com/iwvelando/cultist-circle/pkg/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Resolver is the part of the circle service the handler needs.
type Resolver interface {
	Resolve(ctx context.Context, req circle.Request) (circle.Response, error)
	Items(ctx context.Context, mode, order string, categories []string) (circle.ItemsResult, error)
}

type handler struct {
	resolver      Resolver
	logger        *zap.Logger
	maxUploadSize int64
	timeout       time.Duration
	version       string
}

// NewHandler constructs the HTTP handler that serves the circle API.
func NewHandler(logger *zap.Logger, resolver Resolver, maxUploadSize int64, timeout time.Duration, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		resolver:      resolver,
		logger:        logger,
		maxUploadSize: maxUploadSize,
		timeout:       timeout,
		version:       trimmedVersion,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/optimize", h.handleOptimize)
	mux.HandleFunc("/api/items", h.handleItems)
	mux.HandleFunc("/api/version", h.handleVersion)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

type optimizeResponse struct {
	circle.Response
	Duration string `json:"duration"`
}

func (h *handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimize"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read request: %v", err), op)
		return
	}

	req, err := decodeRequest(r.Header.Get("Content-Type"), data)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	outputFormat := r.URL.Query().Get("format")
	if outputFormat == "" {
		outputFormat = constants.OutputFormatJSON
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.resolver.Resolve(ctx, req)
	if err != nil {
		h.respondErrorWithOp(w, circle.StatusCode(err), err.Error(), op)
		return
	}

	h.logger.Debug("optimize request served",
		zap.String("op", op),
		zap.String("mode", resp.Mode),
		zap.Duration("duration", time.Since(start)),
	)

	switch outputFormat {
	case constants.OutputFormatJSON:
		h.writeJSON(w, http.StatusOK, optimizeResponse{Response: resp, Duration: time.Since(start).String()})
	case constants.OutputFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		if err := output.CSV(w, resp); err != nil {
			h.logger.Error("failed to write CSV response", zap.String("op", op), zap.Error(err))
		}
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := output.Pretty(w, resp); err != nil {
			h.logger.Error("failed to write text response", zap.String("op", op), zap.Error(err))
		}
	}
}

// decodeRequest accepts JSON bodies and, for YAML content types, the same
// document written as YAML.
func decodeRequest(contentType string, data []byte) (circle.Request, error) {
	var req circle.Request
	if len(bytes.TrimSpace(data)) == 0 {
		return req, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("failed to decode YAML request: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("failed to decode request: %w", err)
		}
	}
	return req, nil
}

func (h *handler) handleItems(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleItems"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	mode := query.Get("mode")
	if mode != "" {
		if err := validation.ValidateMode(mode); err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
			return
		}
	}
	order := query.Get("sort")
	if order != "" {
		if err := validation.ValidateSortOrder(order); err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
			return
		}
	}
	var categories []string
	for _, c := range query["category"] {
		for _, part := range strings.Split(c, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				categories = append(categories, trimmed)
			}
		}
	}

	res, err := h.resolver.Items(r.Context(), mode, order, categories)
	if err != nil {
		h.respondErrorWithOp(w, circle.StatusCode(err), err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("circle request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
