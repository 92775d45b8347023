package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/storage"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/store"
)

// Snapshot is the archived document.
type Snapshot struct {
	TakenAt  time.Time      `json:"takenAt"`
	Overview store.Overview `json:"overview"`
	State    *store.State   `json:"state"`
}

// SnapshotJob uploads the current store snapshot to object storage.
type SnapshotJob struct {
	store    *store.Store
	archiver storage.Archiver
	clock    clock.PassiveClock
}

func NewSnapshotJob(st *store.Store, archiver storage.Archiver, clk clock.PassiveClock) *SnapshotJob {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &SnapshotJob{store: st, archiver: archiver, clock: clk}
}

func (j *SnapshotJob) Name() string { return "snapshot" }

func (j *SnapshotJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	st := j.store.Snapshot()

	data, err := json.Marshal(Snapshot{TakenAt: now, Overview: st.Overview(), State: st})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return j.archiver.Put(ctx, storage.SnapshotKey(now), data)
}
