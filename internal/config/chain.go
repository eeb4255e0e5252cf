package config

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/pkg/types"
)

type Chain struct {
	DataDir string
	Genesis types.Genesis
}

const (
	Cfg_chain_dataDir = "chain.dataDir"
	Cfg_chain_genesis = "chain.genesis"
)

var (
	chainDefaults = map[string]interface{}{
		Cfg_chain_dataDir: "$HOME/.aeon/data",
	}
)

func init() {
	for k, v := range chainDefaults {
		viper.SetDefault(k, v)
	}
}

func buildChainConfig() (*Chain, error) {
	c := &Chain{
		DataDir: viper.GetString(Cfg_chain_dataDir),
	}

	gcfg := viper.GetString(Cfg_chain_genesis)
	if gcfg == "" {
		return nil, errors.New("missing genesis config")
	}

	raw, err := base64.StdEncoding.DecodeString(gcfg)
	if err != nil {
		return nil, errors.Wrap(err, "b64 decoding genesis config")
	}

	if err := msgpack.Unmarshal(raw, &c.Genesis); err != nil {
		return nil, errors.Wrap(err, "unmarshaling genesis")
	}

	return c, nil
}
