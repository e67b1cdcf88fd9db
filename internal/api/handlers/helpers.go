package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/utils"
	"github.com/kybernus/license-api/internal/pkg/validator"
)

const maxBodyBytes = 64 << 10

// decodeJSON reads and validates a request body into dst. It writes the error
// response itself and reports whether the handler may continue. An empty body
// decodes as the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validator, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return false
	}

	if validationErrs := v.Validate(dst); len(validationErrs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", validationErrs))
		return false
	}
	return true
}
