// Package response writes the JSON envelope shared by every API endpoint:
// {"success":true,"data":...} or {"success":false,"error":{"code":...,"message":...}}.
package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Error codes.
const (
	CodeBadRequest         = "AUTH_BAD_REQUEST"
	CodeValidation         = "AUTH_VALIDATION_FAILED"
	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeTokenRequired      = "AUTH_TOKEN_REQUIRED"
	CodeTokenInvalid       = "AUTH_TOKEN_INVALID"
	CodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	CodeSessionNotFound    = "AUTH_SESSION_NOT_FOUND"
	CodeSessionExpired     = "AUTH_SESSION_EXPIRED"
	CodeSessionRevoked     = "AUTH_SESSION_REVOKED"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeNotFound           = "AUTH_NOT_FOUND"
	CodeInternal           = "AUTH_INTERNAL_ERROR"
)

// ErrorBody is the error member of a failure envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the top-level response body.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// maxBodyBytes caps request bodies read by Decode.
const maxBodyBytes = 1 << 20

// JSON writes payload with status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a success envelope around data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

// Decode reads a JSON body into dest. An empty body leaves dest untouched.
func Decode(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
