package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// respondError sends a structured JSON error response. A zero status is
// derived from the error code.
func respondError(w http.ResponseWriter, status int, err error) {
	if status == 0 {
		status = statusForError(err)
	}

	response := struct {
		Error       string   `json:"error"`
		Status      int      `json:"status"`
		Code        string   `json:"code,omitempty"`
		Message     string   `json:"message"`
		Details     string   `json:"details,omitempty"`
		Remediation []string `json:"remediation,omitempty"`
		Timestamp   string   `json:"timestamp"`
	}{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if e, ok := mlferrors.As(err); ok {
		response.Code = string(e.Code)
		response.Message = e.Display()
		response.Remediation = append([]string{}, e.Remediation...)
		response.Details = e.Error()
	} else if err != nil {
		response.Message = err.Error()
	}
	if len(response.Remediation) == 0 {
		response.Remediation = defaultRemediation(response.Code, status)
	}
	response.Error = response.Message

	respondJSON(w, status, response)
}

// statusForError maps structured error codes onto HTTP statuses.
func statusForError(err error) int {
	switch mlferrors.GetCode(err) {
	case mlferrors.ErrCodeValidation:
		return http.StatusBadRequest
	case mlferrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case mlferrors.ErrCodeNotFound:
		return http.StatusNotFound
	case mlferrors.ErrCodeNoRowsAffected:
		return http.StatusForbidden
	case mlferrors.ErrCodeConfirmationRequired:
		return http.StatusConflict
	case mlferrors.ErrCodeRemoteCall:
		return http.StatusBadGateway
	case mlferrors.ErrCodeConfigInvalid:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// defaultRemediation provides remediation steps for common errors.
func defaultRemediation(code string, status int) []string {
	switch mlferrors.ErrorCode(code) {
	case mlferrors.ErrCodeUnauthorized:
		return []string{"Sign in again at /admin/login."}
	case mlferrors.ErrCodeRemoteCall:
		return []string{
			"Check the content store is reachable from this server.",
			"Retry once connectivity is restored.",
		}
	case mlferrors.ErrCodeConfigInvalid:
		return []string{"Set MLF_STORE_URL and MLF_STORE_ANON_KEY, or run with the local driver."}
	}
	if status == http.StatusTooManyRequests {
		return []string{"Wait a minute before trying again."}
	}
	return nil
}

// parseIntDefault parses a positive integer with a default fallback.
func parseIntDefault(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}

func randomHex(n int) (string, error) {
	if n <= 0 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// isRequestSecure returns true if the request is over HTTPS.
func isRequestSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")))
	return proto == "https"
}
