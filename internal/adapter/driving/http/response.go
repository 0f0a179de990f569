package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// ChangePasswordRequest is the JSON body for the password change endpoint.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// IngestMessageRequest mirrors the payload sent by the mobile SMS gateway.
// The id may arrive as a JSON number; date accepts RFC 3339 or Unix
// milliseconds and defaults to the receipt time when absent.
type IngestMessageRequest struct {
	ID        json.Number     `json:"id"`
	Sender    string          `json:"sender"`
	Message   string          `json:"message"`
	Date      json.RawMessage `json:"date"`
	SimNumber string          `json:"sim_number"`
	SimSlot   string          `json:"sim_slot"`
}

// MessageResponse is the JSON representation of a stored message. Field
// names match the ingestion payload so the panel and the gateway share one
// vocabulary.
type MessageResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Date      string `json:"date"`
	SimNumber string `json:"sim_number,omitempty"`
	SimSlot   string `json:"sim_slot,omitempty"`
}

// IngestResponse acknowledges a stored message.
type IngestResponse struct {
	Success bool            `json:"success"`
	Message MessageResponse `json:"message"`
}

// DeleteResponse acknowledges a targeted delete.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// DeleteAllResponse acknowledges a bulk delete.
type DeleteAllResponse struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deletedCount"`
}

// CountResponse carries the current message total.
type CountResponse struct {
	Count int `json:"count"`
}

// UpdateNumberRequest is the JSON body for the phone number update endpoint.
type UpdateNumberRequest struct {
	Number string `json:"number"`
}

// UpdateNumberResponse acknowledges a phone number update.
type UpdateNumberResponse struct {
	Success bool   `json:"success"`
	Number  string `json:"number"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toMessageResponse converts a domain Message to its JSON response representation.
func toMessageResponse(msg model.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Message:   msg.Body,
		Date:      msg.OccurredAt.UTC().Format(time.RFC3339),
		SimNumber: msg.OriginNumber,
		SimSlot:   msg.OriginSlot,
	}
}
