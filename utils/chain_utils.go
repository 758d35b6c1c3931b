package utils

import (
	"encoding/json"

	"github.com/crytic/medusa-geth/params"
	"github.com/pkg/errors"
)

// CopyChainConfig returns a deep copy of config, so forks can be scheduled without mutating a shared configuration
// such as params.TestChainConfig.
func CopyChainConfig(config *params.ChainConfig) (*params.ChainConfig, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode the chain config")
	}
	var chainConfig params.ChainConfig
	if err = json.Unmarshal(data, &chainConfig); err != nil {
		return nil, errors.Wrap(err, "could not decode the chain config")
	}
	return &chainConfig, nil
}
