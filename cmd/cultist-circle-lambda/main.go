//go:build lambda

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/iwvelando/cultist-circle/internal/circle"
	"github.com/iwvelando/cultist-circle/internal/config"
	"github.com/iwvelando/cultist-circle/internal/selector"
	"github.com/iwvelando/cultist-circle/pkg/logging"
	"go.uber.org/zap"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type app struct {
	service *circle.Service
	logger  *zap.Logger
}

func (a *app) handler(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	if event.RequestContext.HTTP.Method != "" && event.RequestContext.HTTP.Method != http.MethodPost {
		return errResp(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	}

	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(http.StatusBadRequest, "invalid base64 body")
		}
		body = string(decoded)
	}

	var req circle.Request
	if body != "" {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return errResp(http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
	}

	resp, err := a.service.Resolve(ctx, req)
	if err != nil {
		a.logger.Warn("circle request failed",
			zap.String("op", "main.handler"),
			zap.Int("status", circle.StatusCode(err)),
			zap.Error(err),
		)
		return errResp(circle.StatusCode(err), err.Error())
	}

	respJSON, err := json.Marshal(resp)
	if err != nil {
		return errResp(http.StatusInternalServerError, err.Error())
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	// Configuration comes from CULTIST_* environment variables.
	conf, err := config.Default()
	if err == nil {
		err = conf.Validate()
	}
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(conf.Logging, os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}

	optimizer, err := selector.NewOptimizer(logger, conf.Selector.Policy, nil)
	if err != nil {
		panic(err)
	}

	// Warm invocations keep the in-memory snapshot between requests.
	catalogs := circle.NewCatalogs(logger, conf.Catalog, &http.Client{Timeout: 20 * time.Second})
	a := &app{
		logger: logger,
		service: circle.NewService(logger, catalogs, selector.NewCoordinator(logger, optimizer), circle.Defaults{
			Mode:       conf.Catalog.Mode,
			Threshold:  conf.Threshold,
			MaxItems:   conf.MaxItems,
			Categories: conf.Selector.Categories,
		}),
	}
	lambda.Start(a.handler)
}
