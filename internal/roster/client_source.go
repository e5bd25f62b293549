package roster

import (
	"context"
	"time"

	"github.com/jupiterbjy/gotigris/internal/tigris"
)

// ClientSource adapts a portal client to the Source interface, applying the
// configured default search filters to every fetch.
type ClientSource struct {
	client    *tigris.Client
	query     tigris.CalendarQuery
	autoLogin bool
}

// NewClientSource creates a ClientSource. The query's From/To fields are
// ignored; they are replaced per fetch. With autoLogin the full login
// choreography runs before every fetch, so long-lived callers survive the
// portal expiring their session.
func NewClientSource(client *tigris.Client, query tigris.CalendarQuery, autoLogin bool) *ClientSource {
	return &ClientSource{
		client:    client,
		query:     query,
		autoLogin: autoLogin,
	}
}

// Events fetches events overlapping [from, to] from the portal.
func (cs *ClientSource) Events(ctx context.Context, from, to time.Time) ([]*tigris.Event, error) {
	if cs.autoLogin {
		if err := cs.client.Login(ctx); err != nil {
			return nil, err
		}
	}

	q := cs.query
	q.From = from
	q.To = to
	return cs.client.GetCalendar(ctx, q)
}
