package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/types"
)

// SyncState is the synchronization driver's reaction to the last peer
// announcement.
type SyncState uint8

const (
	// SyncCurrent means the local chain is at or ahead of the announced
	// tip.
	SyncCurrent SyncState = iota
	// SyncProbablyBehind means the announced tip is exactly one ahead;
	// the driver waits one broadcast interval before deciding.
	SyncProbablyBehind
	// SyncBehind means the announced tip is two or more ahead.
	SyncBehind
	// SyncSyncing means a pull-verify-commit session is in progress.
	SyncSyncing
)

func (s SyncState) String() string {
	switch s {
	case SyncCurrent:
		return "current"
	case SyncProbablyBehind:
		return "probably_behind"
	case SyncBehind:
		return "behind"
	case SyncSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

const (
	// DefaultBroadcastInterval is how often committed tips are announced,
	// and therefore how long a one-epoch lag is given to resolve itself.
	DefaultBroadcastInterval = 3 * time.Second

	defaultPullAttempts = 3
	defaultBackoffMin   = 200 * time.Millisecond
	defaultBackoffMax   = 2 * time.Second
)

type SyncOption func(*Synchronizer)

// WithSyncInterval overrides the wait applied to a one-epoch lag.
func WithSyncInterval(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		s.interval = d
	}
}

// WithPullAttempts bounds the retries of one pull request.
func WithPullAttempts(n int) SyncOption {
	return func(s *Synchronizer) {
		s.pullAttempts = n
	}
}

func WithPullBackoff(min, max time.Duration) SyncOption {
	return func(s *Synchronizer) {
		s.backoffMin = min
		s.backoffMax = max
	}
}

// Synchronizer drives catch-up from peer tip announcements. A session
// holds the engine lock for its whole duration, so live commits and
// replayed commits can never interleave.
type Synchronizer struct {
	engine  *ConsensusEngine
	adapter ConsensusAdapter

	interval     time.Duration
	pullAttempts int
	backoffMin   time.Duration
	backoffMax   time.Duration

	mu    sync.Mutex
	state SyncState

	logger *logrus.Entry
}

func NewSynchronizer(engine *ConsensusEngine, adapter ConsensusAdapter, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		engine:       engine,
		adapter:      adapter,
		interval:     DefaultBroadcastInterval,
		pullAttempts: defaultPullAttempts,
		backoffMin:   defaultBackoffMin,
		backoffMax:   defaultBackoffMax,
		logger:       logging.WithField("component", "sync"),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

func (s *Synchronizer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Synchronizer) setState(st SyncState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// OnRichEpochID reacts to a peer announcing its latest committed epoch.
// A lag of one epoch is given one broadcast interval to resolve through
// the live path; a larger lag starts a session immediately. Catch-up
// failures leave the already-committed prefix in place; the next
// announcement retries from there.
func (s *Synchronizer) OnRichEpochID(ctx context.Context, rich uint64) error {
	current, err := s.adapter.GetCurrentEpochID(ctx)
	if err != nil {
		return errors.Wrap(err, "reading local tip")
	}

	if current >= rich {
		s.setState(SyncCurrent)
		return nil
	}

	if rich == current+1 {
		s.setState(SyncProbablyBehind)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}

		current, err = s.adapter.GetCurrentEpochID(ctx)
		if err != nil {
			return errors.Wrap(err, "re-reading local tip")
		}

		if current >= rich {
			s.setState(SyncCurrent)
			return nil
		}
	} else {
		s.setState(SyncBehind)
	}

	return s.session(ctx, rich)
}

// session pulls, verifies and commits every missing epoch up to rich,
// in order, under the engine lock.
func (s *Synchronizer) session(ctx context.Context, rich uint64) error {
	s.engine.Lock()
	defer s.engine.Unlock()

	// a live commit may have advanced the tip while we waited for the
	// lock
	current, err := s.adapter.GetCurrentEpochID(ctx)
	if err != nil {
		return errors.Wrap(err, "reading local tip")
	}

	if current >= rich {
		s.setState(SyncCurrent)
		return nil
	}

	s.setState(SyncSyncing)
	defer s.setState(SyncCurrent)

	s.logger.WithFields(logging.Fields{
		"from": current + 1,
		"to":   rich,
	}).Info("starting sync session")

	prevHash, err := s.sessionBase(ctx, current)
	if err != nil {
		return err
	}

	for id := current + 1; id <= rich; id++ {
		epoch, err := s.pullEpoch(ctx, id)
		if err != nil {
			return errors.Wrapf(ErrSyncFailed, "pulling epoch %d: %s", id, err)
		}

		if !epoch.Header.PreHash.Equal(prevHash) {
			return errors.Wrapf(ErrHashChainBroken, "epoch %d pre hash %s, local tip %s",
				id, epoch.Header.PreHash, prevHash)
		}

		vals, err := s.adapter.GetLastValidators(ctx, id-1)
		if err != nil {
			return errors.Wrapf(err, "loading validators for epoch %d", id-1)
		}

		if err := VerifyProof(epoch.Header.Proof, id-1, epoch.Header.PreHash, vals); err != nil {
			return err
		}

		txs, err := s.pullTxs(ctx, epoch.OrderedTxHashes)
		if err != nil {
			return errors.Wrapf(ErrSyncFailed, "pulling txs for epoch %d: %s", id, err)
		}

		if err := matchTxs(epoch.OrderedTxHashes, txs); err != nil {
			return err
		}

		if err := s.engine.commitLocked(ctx, epoch, txs, epoch.Header.Proof); err != nil {
			return errors.Wrapf(err, "committing synced epoch %d", id)
		}

		prevHash = epoch.Hash()

		s.logger.WithField("epoch", id).Info("synced")
	}

	return nil
}

// sessionBase derives the hash the first pulled epoch must chain from.
// If the successor of the tip already exists locally its recorded
// parent hash is authoritative; otherwise the tip is rehashed.
func (s *Synchronizer) sessionBase(ctx context.Context, current uint64) (types.Hash, error) {
	if next, err := s.adapter.GetEpochByID(ctx, current+1); err == nil {
		return next.Header.PreHash, nil
	}

	tip, err := s.adapter.GetEpochByID(ctx, current)
	if err != nil {
		return types.NilHash, errors.Wrapf(err, "loading local tip %d", current)
	}

	return tip.Hash(), nil
}

func (s *Synchronizer) pullEpoch(ctx context.Context, id uint64) (*types.Epoch, error) {
	b := &backoff.Backoff{
		Min:    s.backoffMin,
		Max:    s.backoffMax,
		Jitter: true,
	}

	var lastErr error
	for i := 0; i < s.pullAttempts; i++ {
		epoch, err := s.adapter.PullEpoch(ctx, id, EndRPCSyncPullEpoch)
		if err == nil {
			return epoch, nil
		}
		lastErr = err

		s.logger.WithError(err).WithField("epoch", id).Error("pull epoch attempt failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}

	return nil, lastErr
}

func (s *Synchronizer) pullTxs(ctx context.Context, hashes []types.Hash) ([]*types.SignedTransaction, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	b := &backoff.Backoff{
		Min:    s.backoffMin,
		Max:    s.backoffMax,
		Jitter: true,
	}

	var lastErr error
	for i := 0; i < s.pullAttempts; i++ {
		txs, err := s.adapter.PullTxs(ctx, hashes, EndRPCSyncPullTxs)
		if err == nil {
			return txs, nil
		}
		lastErr = err

		s.logger.WithError(err).Error("pull txs attempt failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}

	return nil, lastErr
}

// matchTxs checks that a pulled tx set is exactly the ordered hash list.
func matchTxs(hashes []types.Hash, txs []*types.SignedTransaction) error {
	if len(hashes) != len(txs) {
		return errors.Wrapf(ErrSyncFailed, "peer returned %d txs for %d hashes", len(txs), len(hashes))
	}

	for i, tx := range txs {
		if !tx.TxHash.Equal(hashes[i]) {
			return errors.Wrapf(ErrSyncFailed, "tx %d hash mismatch", i)
		}
	}

	return nil
}
