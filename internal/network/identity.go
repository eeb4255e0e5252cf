package network

import (
	"crypto/rand"
	"io/ioutil"
	"os"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/internal/config"
	"github.com/aeonchain/aeon/internal/utils/logging"
)

func getIdentity(cfg *config.Config) (libp2p.Option, error) {
	id := cfg.P2P().IdentityFile
	_, err := os.Stat(id)
	if errors.Is(err, os.ErrNotExist) {
		if err := generateIdentity(cfg); err != nil {
			return nil, errors.Wrap(err, "creating new identity")
		}
	} else if err != nil {
		return nil, errors.Wrap(err, "checking identity file")
	}

	idB, err := ioutil.ReadFile(id)
	if err != nil {
		return nil, errors.Wrap(err, "reading identity file")
	}

	priv, err := crypto.UnmarshalPrivateKey(idB)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling private key")
	}

	return libp2p.Identity(priv), nil
}

func generateIdentity(cfg *config.Config) error {
	logging.Entry().Debug("creating a new Ed25519 identity")

	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, 0, rand.Reader)
	if err != nil {
		return errors.Wrap(err, "generating priv key")
	}

	b, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return errors.Wrap(err, "marshaling new private key")
	}

	return ioutil.WriteFile(cfg.P2P().IdentityFile, b, 0600)
}
