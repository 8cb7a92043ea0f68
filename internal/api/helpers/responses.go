package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	custommw "github.com/palisade-io/palisade/internal/api/middleware"
	"github.com/palisade-io/palisade/internal/domain"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message       string `json:"message"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondError translates a domain error kind into its HTTP status and the
// standard error envelope. Unclassified errors read as Internal and keep
// their detail out of the response.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	custommw.RecordErrorCode(r.Context(), kind.String())

	message := "internal server error"
	if kind != domain.KindInternal && kind != domain.KindDatabase {
		message = err.Error()
	} else {
		slog.ErrorContext(r.Context(), "request_failed", "error", err, "path", r.URL.Path)
	}

	RespondJSON(w, kind.HTTPStatus(), errorBody{Error: errorDetail{
		Message:       message,
		Code:          kind.String(),
		CorrelationID: middleware.GetReqID(r.Context()),
	}})
}
