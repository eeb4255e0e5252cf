package network

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/protocol"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/consensus"
)

const (
	ProtocolID = protocol.ID("/aeon/consensus/1.0.0")

	defaultRPCTimeout = 10 * time.Second
)

var ErrNoPeers = errors.New("no peers available")

type rpcRequest struct {
	Endpoint string `msgpack:"e"`
	Payload  []byte `msgpack:"p"`
	OneWay   bool   `msgpack:"o"`
}

type rpcResponse struct {
	Error   string `msgpack:"err"`
	Payload []byte `msgpack:"p"`
}

var _ consensus.Rpc = (*StreamRpc)(nil)

// StreamRpc serves and performs request/response calls over libp2p
// streams. One-way frames on the same protocol carry unicast gossip
// payloads.
type StreamRpc struct {
	host    *Host
	timeout time.Duration

	mu       sync.RWMutex
	handlers map[string]consensus.RpcHandler
	direct   map[string]consensus.GossipHandler

	next uint64

	logger *logrus.Entry
}

func NewStreamRpc(h *Host) *StreamRpc {
	r := &StreamRpc{
		host:     h,
		timeout:  defaultRPCTimeout,
		handlers: make(map[string]consensus.RpcHandler),
		direct:   make(map[string]consensus.GossipHandler),
		logger:   logging.WithField("component", "rpc"),
	}

	h.host.SetStreamHandler(ProtocolID, r.handleStream)

	return r
}

func (r *StreamRpc) RegisterHandler(h consensus.RpcHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[h.Endpoint()] = h
}

// RegisterDirect routes one-way frames for an endpoint to a gossip
// handler, mirroring its pubsub subscription.
func (r *StreamRpc) RegisterDirect(h consensus.GossipHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.direct[h.Endpoint()] = h
}

func (r *StreamRpc) handleStream(s network.Stream) {
	defer s.Close()

	rw := newStreamRW(s)

	raw, err := rw.Read()
	if err != nil {
		r.logger.WithError(err).Error("reading request frame")
		return
	}

	req := &rpcRequest{}
	if err := msgpack.Unmarshal(raw, req); err != nil {
		r.logger.WithError(err).Error("dropping malformed request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if req.OneWay {
		r.mu.RLock()
		h, ok := r.direct[req.Endpoint]
		r.mu.RUnlock()

		if !ok {
			r.logger.WithField("endpoint", req.Endpoint).Error("no direct handler")
			return
		}

		h.Process(ctx, req.Payload)
		return
	}

	resp := &rpcResponse{}

	r.mu.RLock()
	h, ok := r.handlers[req.Endpoint]
	r.mu.RUnlock()

	if !ok {
		resp.Error = "unknown endpoint " + req.Endpoint
	} else if payload, err := h.Serve(ctx, req.Payload); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Payload = payload
	}

	b, err := msgpack.Marshal(resp)
	if err != nil {
		r.logger.WithError(err).Error("marshaling response")
		return
	}

	if err := rw.Write(b); err != nil {
		r.logger.WithError(err).Error("writing response frame")
	}
}

// Call performs one round-trip against a connected peer chosen round
// robin.
func (r *StreamRpc) Call(ctx context.Context, end string, req []byte) ([]byte, error) {
	pid, err := r.pickPeer()
	if err != nil {
		return nil, err
	}

	raw, err := msgpack.Marshal(&rpcRequest{Endpoint: end, Payload: req})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling request")
	}

	s, err := r.host.host.NewStream(ctx, pid, ProtocolID)
	if err != nil {
		return nil, errors.Wrapf(err, "opening stream to %s", pid)
	}
	defer s.Close()

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = s.SetDeadline(deadline)

	rw := newStreamRW(s)
	if err := rw.Write(raw); err != nil {
		return nil, err
	}

	b, err := rw.Read()
	if err != nil {
		return nil, err
	}

	resp := &rpcResponse{}
	if err := msgpack.Unmarshal(b, resp); err != nil {
		return nil, errors.Wrap(err, "unmarshaling response")
	}

	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}

	return resp.Payload, nil
}

// SendDirect delivers a one-way frame to a specific peer.
func (r *StreamRpc) SendDirect(ctx context.Context, pid peer.ID, end string, payload []byte) error {
	raw, err := msgpack.Marshal(&rpcRequest{Endpoint: end, Payload: payload, OneWay: true})
	if err != nil {
		return errors.Wrap(err, "marshaling request")
	}

	s, err := r.host.host.NewStream(ctx, pid, ProtocolID)
	if err != nil {
		return errors.Wrapf(err, "opening stream to %s", pid)
	}
	defer s.Close()

	return newStreamRW(s).Write(raw)
}

func (r *StreamRpc) pickPeer() (peer.ID, error) {
	peers := r.host.host.Network().Peers()
	if len(peers) == 0 {
		return "", ErrNoPeers
	}

	n := atomic.AddUint64(&r.next, 1)
	return peers[n%uint64(len(peers))], nil
}
