// Package httphandler is the HTTP driving adapter that serves the panel and
// gateway REST API.
package httphandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ericfisherdev/smspanel/internal/application"
	"github.com/ericfisherdev/smspanel/internal/domain/model"
	"github.com/ericfisherdev/smspanel/internal/domain/port/driven"
)

// maxMessageIDLength bounds client-supplied message identifiers.
const maxMessageIDLength = 64

// Handler serves the REST API. Admin routes sit behind the bearer gate,
// gateway routes behind the API key gate.
type Handler struct {
	messages driven.MessageStore
	numbers  driven.NumberStore
	auth     *application.AuthService
	notifier *application.Notifier
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	messages driven.MessageStore,
	numbers driven.NumberStore,
	auth *application.AuthService,
	notifier *application.Notifier,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		messages: messages,
		numbers:  numbers,
		auth:     auth,
		notifier: notifier,
		logger:   logger,
	}
}

// NewRouter creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery innermost so panics are caught before logging.
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))

	r.Get("/api/health", h.Health)
	r.Post("/api/login", h.Login)

	// Admin session routes.
	r.Group(func(r chi.Router) {
		r.Use(h.requireBearer)

		r.Get("/api/messages", h.ListMessages)
		r.Get("/api/messages/count", h.CountMessages)
		r.Delete("/api/messages/{id}", h.DeleteMessage)
		r.Delete("/api/messages", h.DeleteAllMessages)

		r.Get("/api/number/web", h.GetNumber)
		r.Put("/api/number", h.UpdateNumber)
		r.Delete("/api/number", h.ClearNumber)

		r.Post("/api/password", h.ChangePassword)
		r.Post("/api/notifications/viewed", h.AcknowledgeNotifications)
		r.Get("/api/notifications/stream", h.NotificationStream)
	})

	// Mobile gateway routes.
	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)

		r.Post("/api/messages", h.IngestMessage)
		r.Get("/api/number", h.GetNumber)
	})

	return r
}

// Login verifies admin credentials and issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, application.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// ChangePassword rotates the admin password after verifying the current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.auth.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
	case errors.Is(err, application.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
	case errors.Is(err, application.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusConflict, "credential storage is not configured")
	default:
		h.logger.Error("password change failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ListMessages returns all stored messages, newest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list messages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		resp = append(resp, toMessageResponse(msg))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CountMessages returns the current message total.
func (h *Handler) CountMessages(w http.ResponseWriter, r *http.Request) {
	count, err := h.messages.Count(r.Context())
	if err != nil {
		h.logger.Error("failed to count messages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// IngestMessage stores a message delivered by the mobile gateway.
func (h *Handler) IngestMessage(w http.ResponseWriter, r *http.Request) {
	var req IngestMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Sender == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "sender and message are required")
		return
	}

	id := req.ID.String()
	if id != "" && !isValidMessageID(id) {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	occurredAt, err := parseMessageDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	msg := model.Message{
		ID:           id,
		Sender:       req.Sender,
		Body:         req.Message,
		OccurredAt:   occurredAt,
		OriginNumber: req.SimNumber,
		OriginSlot:   req.SimSlot,
	}

	stored, err := h.messages.Insert(r.Context(), msg)
	if err != nil {
		h.logger.Error("failed to store message", "sender", req.Sender, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{Success: true, Message: toMessageResponse(stored)})
}

// DeleteMessage removes a single message by id.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isValidMessageID(id) {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := h.messages.Delete(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		h.logger.Error("failed to delete message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// DeleteAllMessages removes every stored message and reports how many were
// deleted.
func (h *Handler) DeleteAllMessages(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.messages.DeleteAll(r.Context())
	if err != nil {
		h.logger.Error("failed to delete all messages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, DeleteAllResponse{Success: true, DeletedCount: deleted})
}

// GetNumber returns the stored phone number as a plain string. An unset
// number is an empty body, not an error.
func (h *Handler) GetNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.numbers.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to get phone number", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(number.Value))
}

// UpdateNumber replaces the stored phone number.
func (h *Handler) UpdateNumber(w http.ResponseWriter, r *http.Request) {
	var req UpdateNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required")
		return
	}

	number, err := h.numbers.Set(r.Context(), req.Number)
	if err != nil {
		h.logger.Error("failed to update phone number", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UpdateNumberResponse{Success: true, Number: number.Value})
}

// ClearNumber resets the stored phone number to empty.
func (h *Handler) ClearNumber(w http.ResponseWriter, r *http.Request) {
	if err := h.numbers.Clear(r.Context()); err != nil {
		h.logger.Error("failed to clear phone number", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// AcknowledgeNotifications marks the message view as opened, clearing the
// unseen count and badge.
func (h *Handler) AcknowledgeNotifications(w http.ResponseWriter, r *http.Request) {
	h.notifier.Viewed(r.Context())
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// NotificationStream streams badge updates to the admin panel as server-sent
// events until the client disconnects.
func (h *Handler) NotificationStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, unsubscribe := h.notifier.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, open := <-updates:
			if !open {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: badge\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// isValidMessageID validates a client-supplied message identifier: non-empty,
// bounded length, and restricted to alphanumerics, hyphens, and underscores.
func isValidMessageID(id string) bool {
	if id == "" || len(id) > maxMessageIDLength {
		return false
	}
	for _, ch := range id {
		if !isValidIDChar(ch) {
			return false
		}
	}
	return true
}

// isValidIDChar returns true if the rune is allowed in a message identifier.
func isValidIDChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// parseMessageDate accepts either an RFC 3339 string or Unix milliseconds.
// An absent date yields the zero time; the store fills it with the receipt
// time.
func parseMessageDate(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = time.Parse(time.RFC3339Nano, s)
		}
		return t, err
	}

	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}
