package billing

import (
	"net/http"

	"github.com/sakibsarkar/docvia-backend/api/responses"
	"github.com/sakibsarkar/docvia-backend/internal/billing"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
)

// ListPlans returns the active plan catalog, cheapest first.
func ListPlans(repo billing.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing repository unavailable"))
			return
		}

		plans, err := repo.ListActivePlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans"))
			return
		}
		responses.WriteSuccess(w, billing.PlansFromModels(plans))
	}
}
