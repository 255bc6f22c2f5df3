package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/accounts"
	"github.com/h4ev/formgate/internal/auth"
	"github.com/h4ev/formgate/internal/cache"
)

// FormsClient fetches data from the forms provider.
type FormsClient interface {
	FetchForms(ctx context.Context, username string) ([]any, int, error)
	FetchSubmissions(ctx context.Context, formID string) (any, int, error)
}

type AccountHandler struct {
	accounts *accounts.Service
	tokens   *auth.Tokens
	log      *logrus.Entry
}

func NewAccountHandler(logger *logrus.Logger, svc *accounts.Service, tokens *auth.Tokens) *AccountHandler {
	return &AccountHandler{
		accounts: svc,
		tokens:   tokens,
		log:      logger.WithField("component", "account_handler"),
	}
}

type FormsHandler struct {
	client FormsClient
	cache  *cache.ResponseCache
	log    *logrus.Entry
}

func NewFormsHandler(logger *logrus.Logger, client FormsClient, rc *cache.ResponseCache) *FormsHandler {
	return &FormsHandler{
		client: client,
		cache:  rc,
		log:    logger.WithField("component", "forms_handler"),
	}
}

func userIDVar(r *http.Request) (uint, string, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, raw, false
	}
	return uint(id), raw, true
}
