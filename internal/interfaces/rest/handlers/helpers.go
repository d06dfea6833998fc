package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func (h *Handlers) decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return application.NewInvalidInputError(fmt.Errorf("decode request body: %w", err))
	}
	if err := h.validate.Struct(dst); err != nil {
		return application.NewInvalidInputError(err)
	}
	return nil
}

func claimNumberParam(r *http.Request) (string, error) {
	var claimNumber string
	err := runtime.BindStyledParameterWithOptions("simple", "claimNumber", chi.URLParam(r, "claimNumber"), &claimNumber,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", application.NewInvalidInputError(err)
	}
	return claimNumber, nil
}
