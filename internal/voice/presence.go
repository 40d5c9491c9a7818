package voice

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// connection is the slice of Manager the coordinator needs.
type connection interface {
	State() ConnectionState
	Disconnect(ctx context.Context) error
}

// PresenceCoordinator polls whether a human agent has taken over the
// session. When one has, the agent connection is torn down so bot and
// human never talk to the customer at the same time. It never reconnects
// on its own: once the human leaves, the customer reconnects explicitly.
type PresenceCoordinator struct {
	interval time.Duration
	check    func(ctx context.Context) (joined bool, agentID string, err error)
	conn     connection
	onChange func(joined bool, agentID string)
	log      *logrus.Logger
}

func NewPresenceCoordinator(
	interval time.Duration,
	check func(ctx context.Context) (bool, string, error),
	conn connection,
	onChange func(joined bool, agentID string),
	log *logrus.Logger,
) *PresenceCoordinator {
	if interval <= 0 {
		interval = defaultPresenceInterval
	}
	return &PresenceCoordinator{
		interval: interval,
		check:    check,
		conn:     conn,
		onChange: onChange,
		log:      log,
	}
}

// Run polls once immediately, then on every tick until ctx is done.
func (p *PresenceCoordinator) Run(ctx context.Context) {
	p.poll(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.poll(ctx)
		}
	}
}

func (p *PresenceCoordinator) poll(ctx context.Context) {
	joined, agentID, err := p.check(ctx)
	if err != nil {
		p.log.WithError(err).Debug("presence check failed")
		return
	}

	if p.onChange != nil {
		p.onChange(joined, agentID)
	}

	if joined && p.conn.State() == StateConnected {
		p.log.WithField("agent_id", agentID).Info("human agent joined, closing agent connection")
		if err := p.conn.Disconnect(ctx); err != nil {
			p.log.WithError(err).Warn("disconnect on agent takeover failed")
		}
	}
}
