package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/squawkhq/squawk/internal/logger"
	"github.com/squawkhq/squawk/pkg/directory"
	"github.com/squawkhq/squawk/pkg/registry"
)

// ensureUserRequest is the sign-in upsert payload.
type ensureUserRequest struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// contactPayload describes the contact being added.
type contactPayload struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// addContactRequest adds a contact to a user's list.
type addContactRequest struct {
	UserID  string         `json:"userId"`
	Contact contactPayload `json:"contact"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status      string   `json:"status"`
	Connections int      `json:"connections"`
	Identities  []string `json:"identities"`
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request metrics.
func (a *Adapter) instrument(route string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		a.metrics.RecordRequest(route, rec.status, time.Since(start))
	}
}

// requestContext bounds directory work for one request.
func (a *Adapter) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), a.config.RequestTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("API response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// writeDirectoryError maps directory errors to HTTP statuses. A failing
// store is a 503; the relay keeps running regardless.
func writeDirectoryError(w http.ResponseWriter, err error) {
	var storeErr *directory.StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case directory.ErrNotFound:
			writeError(w, http.StatusNotFound, "not found")
			return
		case directory.ErrInvalidArgument:
			writeError(w, http.StatusBadRequest, storeErr.Message)
			return
		}
	}
	logger.Error("API directory operation failed: %v", err)
	writeError(w, http.StatusServiceUnavailable, "directory unavailable")
}

// handleEnsureUser upserts the calling user, typically on sign-in.
func (a *Adapter) handleEnsureUser(w http.ResponseWriter, r *http.Request) {
	var req ensureUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	user, err := a.service.EnsureUser(ctx, req.UserID, req.Name, req.Email, req.ImageURL)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleAddContact adds a contact to the owner's list. Adding the same
// contact again returns the same projection without duplicating.
func (a *Adapter) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var req addContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Contact.UserID == "" && req.Contact.Email == "" {
		writeError(w, http.StatusBadRequest, "contact requires a userId or an email")
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	contact, err := a.service.AddContact(ctx, req.UserID, directory.ContactInfo{
		Identity: req.Contact.UserID,
		Name:     req.Contact.Name,
		Email:    req.Contact.Email,
		ImageRef: req.Contact.ImageURL,
	})
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// handleListContacts returns the owner's contact list. An unknown owner
// is a 404, not an empty list.
func (a *Adapter) handleListContacts(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("userId")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	if _, err := a.service.GetUser(ctx, ownerID); err != nil {
		writeDirectoryError(w, err)
		return
	}

	contacts, err := a.service.ListContacts(ctx, ownerID)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// handleHealthz probes the directory store and reports which identities
// the relay is currently routing for.
func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.requestContext(r)
	defer cancel()

	identities := []string{}
	if a.registry != nil {
		a.registry.Range(func(identity string, _ registry.Conn) bool {
			identities = append(identities, identity)
			return true
		})
		sort.Strings(identities)
	}

	status, code := "ok", http.StatusOK
	if err := a.service.Healthcheck(ctx); err != nil {
		logger.Warn("API healthcheck failed: %v", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:      status,
		Connections: len(identities),
		Identities:  identities,
	})
}
