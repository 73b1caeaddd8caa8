package session

import (
	"context"
	"fmt"

	"pitch-deck/internal/models"
)

// IntentForKey maps a keyboard key to a navigation intent
func IntentForKey(key string) (models.IntentType, bool) {
	switch key {
	case "ArrowRight", " ":
		return models.IntentAdvance, true
	case "ArrowLeft":
		return models.IntentRetreat, true
	}
	return "", false
}

// Dispatch applies a renderer intent. Navigation and dismiss intents that
// cannot apply are ignored rather than reported.
func (c *Controller) Dispatch(ctx context.Context, in models.Intent) (models.SessionSnapshot, error) {
	switch in.Type {
	case models.IntentSubmit:
		return c.Submit(ctx, in.LoginID, in.Password)
	case models.IntentAdvance:
		snap, _ := c.Advance()
		return snap, nil
	case models.IntentRetreat:
		snap, _ := c.Retreat()
		return snap, nil
	case models.IntentGoTo:
		snap, _ := c.GoTo(in.Index)
		return snap, nil
	case models.IntentKey:
		mapped, ok := IntentForKey(in.Key)
		if !ok {
			return c.Snapshot(), nil
		}
		return c.Dispatch(ctx, models.Intent{Type: mapped})
	case models.IntentLogout:
		snap, _ := c.Logout()
		return snap, nil
	case models.IntentRequestSummary:
		return c.RequestSummary(ctx)
	case models.IntentDismissSummary:
		snap, _ := c.DismissSummary()
		return snap, nil
	default:
		return c.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownIntent, in.Type)
	}
}
