package circle

import (
	"context"
	"errors"
	"net/http"

	"github.com/iwvelando/cultist-circle/internal/selector"
)

// ErrCatalog marks a request that failed because item prices could not be
// loaded.
var ErrCatalog = errors.New("catalog unavailable")

// StatusCode maps a Resolve or Items error to the HTTP status reported to
// callers.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, selector.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, selector.ErrNoSolution):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCatalog):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, selector.ErrInvalidConfiguration):
		return "invalid"
	case errors.Is(err, selector.ErrNoSolution):
		return "no_solution"
	case errors.Is(err, ErrCatalog):
		return "catalog_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
