package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
	"github.com/utafrali/storefront-sync/pkg/httputil"
)

// writeResult writes a dispatch result: the failing cause with its own
// status, or the data with the command meta.
func writeResult(w http.ResponseWriter, r *http.Request, res dispatch.Result, l *slog.Logger) {
	if res.Failed() {
		httputil.WriteError(w, r, res.Cause(), l)
		return
	}
	httputil.WriteData(w, res.Data(), res.Meta())
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.InvalidInput(name + " must be a boolean")
	}
	return v, nil
}
