package billing

import (
	"net/http"

	"github.com/sakibsarkar/docvia-backend/api/middleware"
	"github.com/sakibsarkar/docvia-backend/api/responses"
	"github.com/sakibsarkar/docvia-backend/internal/billing"
	"github.com/sakibsarkar/docvia-backend/internal/entitlements"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
)

// CurrentSubscription resolves the authenticated user's governing subscription,
// provisioning the free tier on first touch.
func CurrentSubscription(resolver entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement resolver unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		sub, err := resolver.ResolveCurrentSubscription(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, billing.SubscriptionFromModel(sub))
	}
}
