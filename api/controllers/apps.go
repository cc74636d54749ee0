package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sakibsarkar/docvia-backend/api/middleware"
	"github.com/sakibsarkar/docvia-backend/api/responses"
	"github.com/sakibsarkar/docvia-backend/api/validators"
	"github.com/sakibsarkar/docvia-backend/internal/apps"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
)

func appIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "appID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid app id")
	}
	return id, nil
}

// CreateApp registers a new app for the authenticated user.
func CreateApp(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var body apps.CreateAppRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.Create(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, app)
	}
}

// ListApps returns the authenticated user's apps, oldest first.
func ListApps(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		list, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetApp returns one app owned by the authenticated user.
func GetApp(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		appID, err := appIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.Get(r.Context(), userID, appID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, app)
	}
}

// ActivateApp turns an app on, subject to the plan's active app limit.
func ActivateApp(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		appID, err := appIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.Activate(r.Context(), userID, appID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, app)
	}
}

// DeactivateApp turns an app off.
func DeactivateApp(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		appID, err := appIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.Deactivate(r.Context(), userID, appID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, app)
	}
}

// DeleteApp removes an app entirely.
func DeleteApp(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		appID, err := appIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, appID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
