package cmd

import (
	"context"
	"time"

	"github.com/jmreid/daybook/internal/models"
	daysync "github.com/jmreid/daybook/internal/sync"
)

// syncTimeout keeps post-mutation pushes from stalling the command.
const syncTimeout = 5 * time.Second

// syncAfterMutation runs a quick push for the affected collection before the
// process exits, since a short-lived CLI cannot sit out the debounce window.
// Errors are logged and recorded in sync metadata, never surfaced as a
// failure of the user's action — the local write already succeeded.
func syncAfterMutation(rt *runtime, c models.Collection) {
	if !rt.cfg.Sync.Enabled || rt.cfg.Sync.ServerURL == "" {
		return
	}
	if !rt.cfg.IsAuthenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	err := rt.orch.TriggerManualSync(ctx, daysync.Request{
		Collections: []models.Collection{c},
		Direction:   daysync.DirectionPush,
	})
	if err != nil {
		rt.log.Debug("autosync push", "collection", c, "err", err)
	}
}
