package billing

import (
	"html/template"
	"net/http"

	"github.com/sakibsarkar/docvia-backend/internal/checkout"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
)

// confirmPage is the minimal HTML rendered for the browser redirect round
// trip. Payment state may still be settling when the user lands here, so the
// pending branch tells them the webhook will finish the job.
var confirmPage = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html>
<head><title>Docvia Billing</title></head>
<body>
{{if eq .Outcome "active"}}
<h1>Subscription active</h1>
<p>Your {{.PlanName}} subscription is ready to use.</p>
{{else if eq .Outcome "pending"}}
<h1>Almost there</h1>
<p>Your payment is being confirmed. Your {{.PlanName}} subscription will activate shortly.</p>
{{else if eq .Outcome "canceled"}}
<h1>Checkout canceled</h1>
<p>No charge was made. You can restart the upgrade at any time.</p>
{{else}}
<h1>Something went wrong</h1>
<p>This confirmation link is invalid or has expired.</p>
{{end}}
</body>
</html>`))

type confirmPageData struct {
	Outcome  string
	PlanName string
}

// ConfirmCheckout consumes the redirect token and renders the outcome page.
// Failures all render the same generic page, never a reason.
func ConfirmCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := confirmPageData{Outcome: "failed"}
		status := http.StatusOK

		if svc != nil {
			token := r.URL.Query().Get("token")
			canceled := r.URL.Query().Get("outcome") == "cancel"

			result, err := svc.ConfirmFromRedirect(r.Context(), token, canceled)
			if err != nil {
				if logg != nil {
					logg.Warn(r.Context(), "checkout confirmation rejected")
				}
				status = http.StatusUnauthorized
			} else {
				data.Outcome = string(result.Outcome)
				data.PlanName = result.PlanName
			}
		} else {
			status = http.StatusInternalServerError
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := confirmPage.Execute(w, data); err != nil && logg != nil {
			logg.Error(r.Context(), "render confirmation page", err)
		}
	}
}
