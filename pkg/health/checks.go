package health

import (
	"context"
	"fmt"
)

// Pinger is satisfied by the Redis and Postgres clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports a dependency down when its Ping fails. Optional
// dependencies pass degraded=true so an outage only degrades readiness.
func PingCheck(p Pinger, degraded bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			status := StatusDown
			if degraded {
				status = StatusDegraded
			}
			return ComponentHealth{Status: status, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// SnapshotInfo is the view of the index a readiness check needs.
type SnapshotInfo interface {
	Version() uint64
	DocCount() int
}

// SnapshotCheck is up once a snapshot with at least one document has been
// committed, degraded for an empty snapshot, and down when none exists.
func SnapshotCheck[S SnapshotInfo](current func() (S, error)) Check {
	return func(context.Context) ComponentHealth {
		snap, err := current()
		if err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		msg := fmt.Sprintf("version %d, %d documents", snap.Version(), snap.DocCount())
		if snap.DocCount() == 0 {
			return ComponentHealth{Status: StatusDegraded, Message: msg}
		}
		return ComponentHealth{Status: StatusUp, Message: msg}
	}
}
