package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/palisade-io/palisade/internal/domain"
)

// DecodeJSON parses the request body into dst. Unknown fields and trailing
// garbage are rejected; input is toxic until proven otherwise.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Wrap(domain.KindInvalidInput, "malformed request body", err)
	}
	if dec.More() {
		return domain.E(domain.KindInvalidInput, "request body must contain a single JSON object")
	}
	return nil
}
