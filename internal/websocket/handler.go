package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Subscription names the household a connection listens to and the member
// holding it.
type Subscription struct {
	HouseholdID int64
	UserID      string
}

// Authorizer admits a request to a household's events. A non-nil error
// rejects the upgrade with the returned status.
type Authorizer func(r *http.Request) (sub Subscription, status int, err error)

// HandleWebSocket authorizes the caller, upgrades the connection and runs it
// as a Hub client until it closes.
func HandleWebSocket(hub *Hub, authorize Authorizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, status, err := authorize(r)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		logger.Debug("websocket connected", "household_id", sub.HouseholdID, "user_id", sub.UserID)
		NewClient(hub, conn, sub).Run(r.Context())
	}
}
