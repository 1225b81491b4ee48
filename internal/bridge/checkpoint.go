package bridge

import (
	"fmt"

	dbm "github.com/tendermint/tm-db"

	"github.com/portalnetwork/bridge/types"
)

// CheckpointStore persists run progress keyed by subnetwork and mode so
// that distinct runs against the same data directory never clobber each
// other's state.
type CheckpointStore struct {
	db dbm.DB
}

func NewCheckpointStore(db dbm.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func checkpointKey(subnetwork types.Subnetwork, mode string) []byte {
	return []byte(fmt.Sprintf("checkpoint/%s/%s", subnetwork, mode))
}

// Load returns the saved checkpoint for the given run identity, or nil if
// no run with that identity has committed progress yet.
func (s *CheckpointStore) Load(subnetwork types.Subnetwork, mode string) (*types.Checkpoint, error) {
	buf, err := s.db.Get(checkpointKey(subnetwork, mode))
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if len(buf) == 0 {
		return nil, nil
	}
	cp, err := types.UnmarshalCheckpoint(buf)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

// Save durably commits a checkpoint. It must only be called with progress
// that is contiguous from the last saved checkpoint.
func (s *CheckpointStore) Save(subnetwork types.Subnetwork, mode string, cp *types.Checkpoint) error {
	buf, err := cp.Marshal()
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := s.db.SetSync(checkpointKey(subnetwork, mode), buf); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Delete removes the saved checkpoint so the next run starts fresh.
func (s *CheckpointStore) Delete(subnetwork types.Subnetwork, mode string) error {
	if err := s.db.DeleteSync(checkpointKey(subnetwork, mode)); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
