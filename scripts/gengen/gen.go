package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/pkg/cryptography"
	"github.com/aeonchain/aeon/pkg/types"
)

// Generates a base64 genesis config plus fresh BLS validator keys,
// ready to paste into aeon.yaml under chain.genesis.
func main() {
	var (
		chainID    = flag.String("chain", "testnet", "chain name")
		validators = flag.Int("validators", 4, "validator count")
		interval   = flag.Uint64("interval", 3000, "consensus interval in ms")
	)
	flag.Parse()

	config := &types.Genesis{
		ChainID:           *chainID,
		Timestamp:         uint64(time.Now().UnixMilli()),
		ConsensusInterval: *interval,
		CyclesPrice:       1,
		CyclesLimit:       1_000_000,
	}

	for i := 0; i < *validators; i++ {
		key := cryptography.NewBlsKeyPair()

		pk, err := key.Public().Bytes()
		if err != nil {
			panic(err)
		}

		config.Validators = append(config.Validators, types.Validator{
			Address:       types.AddressFromPubKey(pk),
			PubKey:        pk,
			ProposeWeight: 1,
			VoteWeight:    1,
		})

		sk, err := key.Bytes()
		if err != nil {
			panic(err)
		}

		fmt.Printf("validator %d pubkey: %x privkey: %x\n", i, pk, sk)
	}

	b, err := msgpack.Marshal(config)
	if err != nil {
		panic(err)
	}

	fmt.Printf("\nGenesis Config:\n%s\n", base64.StdEncoding.EncodeToString(b))
}
