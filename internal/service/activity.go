package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/audit"
	"github.com/tradesmatepro/portal-identity/internal/metrics"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/repository"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

type ActivityEvent struct {
	PortalAccountID string
	Action          model.ActivityAction
	ResourceType    string
	ResourceID      string
	Metadata        map[string]any
	// IPAddress and UserAgent default to the request's caller.
	IPAddress string
	UserAgent string
}

// ActivityLogger appends to the portal activity trail. It is best-effort:
// a failed write is logged and dropped, never returned.
type ActivityLogger struct {
	repo  repository.ActivityRepository
	clock Clock
}

func NewActivityLogger(repo repository.ActivityRepository, clock Clock) *ActivityLogger {
	return &ActivityLogger{repo: repo, clock: orSystemClock(clock)}
}

func (l *ActivityLogger) Log(ctx context.Context, event ActivityEvent) {
	if l == nil || l.repo == nil {
		return
	}

	client := audit.ClientFromContext(ctx)
	if event.IPAddress == "" {
		event.IPAddress = client.IP
	}
	if event.UserAgent == "" {
		event.UserAgent = client.UserAgent
	}

	entry := model.ActivityLogEntry{
		ID:              util.NewID(),
		PortalAccountID: util.NilIfBlank(event.PortalAccountID),
		Action:          event.Action,
		ResourceType:    util.NilIfBlank(event.ResourceType),
		ResourceID:      util.NilIfBlank(event.ResourceID),
		IPAddress:       util.NilIfBlank(event.IPAddress),
		UserAgent:       util.NilIfBlank(event.UserAgent),
		CreatedAt:       l.clock(),
	}

	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			log.Warn().Err(err).Str("action", string(event.Action)).Msg("activity metadata not serializable, dropping it")
		} else {
			entry.Metadata = raw
		}
	}

	if err := l.repo.Append(ctx, entry); err != nil {
		metrics.ActivityLogFailures.Inc()
		log.Warn().
			Err(err).
			Str("action", string(event.Action)).
			Str("portalAccountId", event.PortalAccountID).
			Msg("failed to write activity log")
	}
}
