package billing

import (
	"net/http"

	"github.com/sakibsarkar/docvia-backend/api/middleware"
	"github.com/sakibsarkar/docvia-backend/api/responses"
	"github.com/sakibsarkar/docvia-backend/api/validators"
	"github.com/sakibsarkar/docvia-backend/internal/checkout"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
)

// StartCheckout creates a hosted checkout session for a paid plan.
func StartCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body checkout.StartCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		resp, err := svc.StartCheckout(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
