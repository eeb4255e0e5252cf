package node

import (
	"context"

	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/executor"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/types"
)

// ensureGenesis creates epoch zero on first start: run every service's
// genesis hook against the empty state, then persist the epoch and its
// empty proof.
func (n *Node) ensureGenesis(ctx context.Context) error {
	if _, err := n.store.GetLatestEpoch(ctx); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return errors.Wrap(err, "probing for existing chain")
	}

	genesis := n.cfg.Chain().Genesis

	root, err := executor.CreateGenesis(n.trieDB, n.registry, genesis.Services)
	if err != nil {
		return errors.Wrap(err, "creating genesis state")
	}

	epoch := &types.Epoch{
		Header: types.EpochHeader{
			ChainID:    n.chainID(),
			EpochID:    0,
			Timestamp:  genesis.Timestamp,
			StateRoot:  root,
			Validators: genesis.Validators,
		},
	}

	if err := n.store.InsertEpoch(ctx, epoch); err != nil {
		return errors.Wrap(err, "persisting genesis epoch")
	}

	proof := types.Proof{EpochID: 0, EpochHash: epoch.Hash()}
	if err := n.store.UpdateLatestProof(ctx, proof); err != nil {
		return errors.Wrap(err, "persisting genesis proof")
	}

	n.logger.WithField("hash", epoch.Hash()).Info("genesis epoch created")

	return nil
}
