package handoff

import (
	"net/http"

	"scribed/pkg/bus"
)

// publishEvent is fire-and-forget: a missing bus or a publish failure never
// affects the hand-off itself.
func (a *API) publishEvent(r *http.Request, subject, sessionID, ownerID string, detail map[string]any) {
	if a.deps.Bus == nil {
		return
	}
	err := a.deps.Bus.Publish(r.Context(), bus.Event{
		Subject:   subject,
		SessionID: sessionID,
		OwnerID:   ownerID,
		Detail:    detail,
	})
	if err != nil {
		a.deps.Logger.Printf("WARN publish %s: %v", subject, err)
	}
}
