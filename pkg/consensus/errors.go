package consensus

import "github.com/pkg/errors"

var (
	// ErrProofInvalid marks a quorum proof that fails signature, weight
	// or binding checks. Fatal to the sync session carrying it.
	ErrProofInvalid = errors.New("epoch proof invalid")

	// ErrHashChainBroken marks an epoch whose declared previous hash
	// does not extend the local chain. Fatal to the sync session.
	ErrHashChainBroken = errors.New("epoch hash chain broken")

	// ErrSyncFailed marks a pull round-trip that produced no usable
	// epoch or tx payload. The session aborts; the next rich epoch id
	// announcement retries from scratch.
	ErrSyncFailed = errors.New("synchronization failed")

	// ErrStatusOutOfOrder marks a commit that does not advance the
	// status epoch id by exactly one.
	ErrStatusOutOfOrder = errors.New("commit out of order")

	// ErrStateRootMismatch marks a divergence between a pulled epoch's
	// declared state root and the locally executed result.
	ErrStateRootMismatch = errors.New("state root mismatch")

	// ErrStaleProposal marks a pill built against an epoch id or parent
	// hash the node has moved past.
	ErrStaleProposal = errors.New("stale proposal")

	ErrMsgDecode = errors.New("malformed consensus message")
)
