package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/validation"
)

// keyAAD binds a sealed secret to its owner and provider
func keyAAD(userID string, provider models.APIProvider) []byte {
	return []byte(userID + "/" + string(provider))
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.db.ListAPIKeys(r.Context(), getUserID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, keys)
}

func (s *Server) upsertKey(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertAPIKeyRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if err := validation.ValidateAPIKey(&req); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := getUserID(r)
	sealed, err := s.sealer.Seal([]byte(req.Key), keyAAD(userID, req.Provider))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	key, err := s.db.UpsertAPIKey(r.Context(), userID, req.Provider, sealed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, key)
}

func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) {
	provider := models.APIProvider(r.URL.Query().Get("provider"))
	if !provider.Valid() {
		s.fail(w, r, models.Invalid("provider", "is not a known provider"))
		return
	}
	if err := s.db.DeleteAPIKey(r.Context(), getUserID(r), provider); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"provider": string(provider)})
}

// providerKey opens a user's stored secret for provider
func (s *Server) providerKey(ctx context.Context, userID string, provider models.APIProvider) (string, error) {
	sealed, err := s.db.SealedAPIKey(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	plain, err := s.sealer.Open(sealed, keyAAD(userID, provider))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
