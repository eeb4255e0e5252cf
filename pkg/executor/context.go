package executor

import (
	"github.com/aeonchain/aeon/pkg/trie"
	"github.com/aeonchain/aeon/pkg/types"
)

const (
	// MaxCallDepth bounds recursive service-to-service calls through an
	// explicit counter instead of the native call stack.
	MaxCallDepth = 1024
)

type stateRW interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte)
	Delete(key []byte)
}

// ServiceContext is handed to a service handler for one call. State keys
// are namespaced per service; cross-service calls share the cycle meter
// and event sink of the originating transaction.
type ServiceContext struct {
	registry *Registry
	state    stateRW

	service string
	payload []byte

	epochID     uint64
	caller      types.Address
	txHash      types.Hash
	cyclesPrice uint64
	cyclesLimit uint64

	depth      int
	cyclesUsed *uint64
	events     *[]types.Event
}

func (c *ServiceContext) Payload() []byte {
	return c.payload
}

func (c *ServiceContext) EpochID() uint64 {
	return c.epochID
}

func (c *ServiceContext) Caller() types.Address {
	return c.caller
}

func (c *ServiceContext) TxHash() types.Hash {
	return c.txHash
}

func (c *ServiceContext) CyclesPrice() uint64 {
	return c.cyclesPrice
}

func (c *ServiceContext) CyclesUsed() uint64 {
	return *c.cyclesUsed
}

// UseCycles meters computational cost against the transaction's limit.
func (c *ServiceContext) UseCycles(n uint64) error {
	if *c.cyclesUsed+n > c.cyclesLimit {
		return ErrCyclesLimitReached
	}

	*c.cyclesUsed += n
	return nil
}

func (c *ServiceContext) EmitEvent(data []byte) {
	*c.events = append(*c.events, types.Event{Service: c.service, Data: data})
}

func (c *ServiceContext) StateGet(key []byte) ([]byte, error) {
	return c.state.Get(c.namespaced(key))
}

func (c *ServiceContext) StateSet(key, value []byte) {
	c.state.Set(c.namespaced(key), value)
}

func (c *ServiceContext) StateDelete(key []byte) {
	c.state.Delete(c.namespaced(key))
}

func (c *ServiceContext) namespaced(key []byte) []byte {
	k := append([]byte(c.service), '/')
	return append(k, key...)
}

// Call invokes another service method within the same transaction,
// bumping the explicit call-depth counter.
func (c *ServiceContext) Call(service, method string, payload []byte) ([]byte, error) {
	if c.depth+1 >= MaxCallDepth {
		return nil, ErrCallDepthExceeded
	}

	h, err := c.registry.handler(service, method)
	if err != nil {
		return nil, err
	}

	sub := *c
	sub.service = service
	sub.payload = payload
	sub.depth = c.depth + 1

	return h(&sub)
}

// bufferedState delays writes so a failed transaction leaves no trace in
// the batch state.
type bufferedState struct {
	parent  stateRW
	dirty   map[string][]byte
	deleted map[string]struct{}
}

func newBufferedState(parent stateRW) *bufferedState {
	return &bufferedState{
		parent:  parent,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (b *bufferedState) Get(key []byte) ([]byte, error) {
	if _, ok := b.deleted[string(key)]; ok {
		return nil, trie.ErrKeyNotFound
	}

	if v, ok := b.dirty[string(key)]; ok {
		return v, nil
	}

	return b.parent.Get(key)
}

func (b *bufferedState) Set(key, value []byte) {
	delete(b.deleted, string(key))
	b.dirty[string(key)] = value
}

func (b *bufferedState) Delete(key []byte) {
	delete(b.dirty, string(key))
	b.deleted[string(key)] = struct{}{}
}

func (b *bufferedState) flush() {
	for k, v := range b.dirty {
		b.parent.Set([]byte(k), v)
	}
	for k := range b.deleted {
		b.parent.Delete([]byte(k))
	}
}
