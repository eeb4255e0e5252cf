package types

// Genesis describes the chain's initial state: who validates, how fast
// epochs are produced and what each service seeds into state.
type Genesis struct {
	ChainID           string           `msgpack:"c"`
	Timestamp         uint64           `msgpack:"ts"`
	ConsensusInterval uint64           `msgpack:"i"`
	CyclesPrice       uint64           `msgpack:"cp"`
	CyclesLimit       uint64           `msgpack:"cl"`
	Validators        []Validator      `msgpack:"v"`
	Services          []ServiceGenesis `msgpack:"s"`
}

// ServiceGenesis is the opaque payload handed to a service's genesis
// entry point at first start.
type ServiceGenesis struct {
	Name    string `msgpack:"n"`
	Payload []byte `msgpack:"p"`
}
