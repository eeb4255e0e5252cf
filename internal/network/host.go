package network

import (
	"context"

	"github.com/libp2p/go-libp2p"
	connmgriFace "github.com/libp2p/go-libp2p-core/connmgr"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/peerstore"
	discovery "github.com/libp2p/go-libp2p-discovery"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p-peerstore/pstoremem"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/internal/config"
	"github.com/aeonchain/aeon/internal/utils/logging"
)

// Host bundles the libp2p host with the routers the consensus transports
// are built on.
type Host struct {
	host host.Host

	peerStore peerstore.Peerstore
	connMgr   connmgriFace.ConnManager
	pubsub    *pubsub.PubSub
	dht       *dht.IpfsDHT
	discovery *discovery.RoutingDiscovery
}

func NewHost(ctx context.Context, cfg *config.Config) (*Host, error) {
	var err error
	h := &Host{}

	id, err := getIdentity(cfg)
	if err != nil {
		return nil, err
	}

	listeningAddrs, err := buildListeningAddrs(cfg)
	if err != nil {
		return nil, err
	}

	h.connMgr, err = connmgr.NewConnManager(
		cfg.P2P().Connections.PeersCountLow,
		cfg.P2P().Connections.PeersCountHigh,
	)
	if err != nil {
		return nil, err
	}

	h.peerStore, err = pstoremem.NewPeerstore()
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		id,
		listeningAddrs,
		libp2p.DefaultTransports,
		libp2p.DefaultResourceManager,
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
		libp2p.ConnectionManager(h.connMgr),
		libp2p.Peerstore(h.peerStore),
		libp2p.NATPortMap(),
		libp2p.EnableNATService(),
	}

	if cfg.P2P().Relay {
		opts = append(opts, libp2p.EnableRelay(), libp2p.EnableAutoRelay())
	}

	h.host, err = libp2p.NewWithoutDefaults(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating libp2p host")
	}

	h.dht, err = dht.New(ctx, h.host)
	if err != nil {
		return nil, errors.Wrap(err, "initing DHT")
	}
	if err := h.dht.Bootstrap(ctx); err != nil {
		return nil, errors.Wrap(err, "bootstrapping DHT")
	}

	h.discovery = discovery.NewRoutingDiscovery(h.dht)

	h.pubsub, err = pubsub.NewGossipSub(ctx, h.host,
		pubsub.WithPeerExchange(true),
		pubsub.WithStrictSignatureVerification(true),
		pubsub.WithDiscovery(h.discovery),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating gossipsub router")
	}

	if err := h.connectBootstrapPeers(ctx, cfg); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Host) ID() peer.ID {
	return h.host.ID()
}

func (h *Host) Close() error {
	return h.host.Close()
}

func (h *Host) connectBootstrapPeers(ctx context.Context, cfg *config.Config) error {
	for _, addr := range cfg.P2P().BootstrapPeers {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return errors.Wrapf(err, "parsing bootstrap peer %s", addr)
		}

		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return errors.Wrapf(err, "parsing bootstrap peer info %s", addr)
		}

		if err := h.host.Connect(ctx, *info); err != nil {
			logging.WithError(err).WithField("peer", info.ID).Error("connecting bootstrap peer")
		}
	}

	return nil
}

func buildListeningAddrs(cfg *config.Config) (libp2p.Option, error) {
	maAddrs := []multiaddr.Multiaddr{}

	for _, addr := range cfg.P2P().ListenAddrs {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, err
		}
		maAddrs = append(maAddrs, maddr)
	}

	return libp2p.ListenAddrs(maAddrs...), nil
}
