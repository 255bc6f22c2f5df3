package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/auth"
	"github.com/h4ev/formgate/internal/onadata"
)

// GetForms proxies the forms owned by {username}. Only non-empty successful
// answers are cached.
func (h *FormsHandler) GetForms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := mux.Vars(r)["username"]
	key := h.cache.Key(auth.IdentityFromContext(ctx), r.URL.Path, r.URL.Query())

	if cached, ok := h.cache.Lookup(ctx, key); ok {
		h.log.WithFields(logrus.Fields{"username": username, "source": "cache"}).Debug("Serving forms from cache")
		writeRawJSON(w, http.StatusOK, cached)
		return
	}

	forms, _, err := h.client.FetchForms(ctx, username)
	if err != nil && !errors.Is(err, onadata.ErrNotFound) {
		h.log.WithError(err).WithField("username", username).Error("Error fetching forms")
		writeError(w, http.StatusBadGateway, "Failed to fetch forms")
		return
	}

	if len(forms) == 0 {
		writeJSON(w, http.StatusOK, fmt.Sprintf("error: no forms found for user %s", username))
		return
	}

	h.cache.Save(ctx, key, forms)
	writeJSON(w, http.StatusOK, forms)
}

// GetSubmissions proxies the submitted data of {form_id}.
func (h *FormsHandler) GetSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formID := mux.Vars(r)["form_id"]
	key := h.cache.Key(auth.IdentityFromContext(ctx), r.URL.Path, r.URL.Query())

	if cached, ok := h.cache.Lookup(ctx, key); ok {
		h.log.WithFields(logrus.Fields{"form_id": formID, "source": "cache"}).Debug("Serving submissions from cache")
		writeRawJSON(w, http.StatusOK, cached)
		return
	}

	data, _, err := h.client.FetchSubmissions(ctx, formID)
	if err != nil && !errors.Is(err, onadata.ErrNotFound) {
		h.log.WithError(err).WithField("form_id", formID).Error("Error fetching form submissions")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":             "Failed to fetch form submissions",
			"error_description": "External API returned " + err.Error(),
		})
		return
	}

	if isEmpty(data) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No submissions found for form %s", formID))
		return
	}

	h.cache.Save(ctx, key, data)
	writeJSON(w, http.StatusOK, data)
}

func isEmpty(data any) bool {
	switch v := data.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case string:
		return v == ""
	default:
		return false
	}
}
