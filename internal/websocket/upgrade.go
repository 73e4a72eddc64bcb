package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	ws "nhooyr.io/websocket"
)

// ErrNotUpgrade is returned by Accept for plain HTTP requests.
var ErrNotUpgrade = errors.New("websocket upgrade required")

// UpgradeError is a JSON error response body for failed upgrade attempts.
type UpgradeError struct {
	Error string `json:"error"`
}

// Reject writes a JSON error with the given status.
func Reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(UpgradeError{Error: msg})
}

// IsUpgrade reports whether r asks for a WebSocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Accept upgrades r. Cross-origin requests are only accepted from hosts
// matching originPatterns (same-origin requests always are). Plain HTTP
// requests get a 400 JSON error and ErrNotUpgrade.
func Accept(w http.ResponseWriter, r *http.Request, originPatterns ...string) (*ws.Conn, error) {
	if !IsUpgrade(r) {
		Reject(w, http.StatusBadRequest, ErrNotUpgrade.Error())
		return nil, ErrNotUpgrade
	}
	return ws.Accept(w, r, &ws.AcceptOptions{
		OriginPatterns: originPatterns,
	})
}
