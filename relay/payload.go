// Package relay carries reward mints from the incentive chain to the token
// chain over the bridge.
//
// The Sender lives next to the consensus service and turns a committed
// claim into an abi-encoded mint message. The Receiver lives next to the
// token and applies it. A message that cannot be applied is not lost: its
// payload hash is stored under (source chain, source path, nonce) and anyone
// may replay the exact payload later with RetryMessage.
package relay

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidPayload = errors.New("invalid payload")

var mintArgs = func() abi.Arguments {
	addressT, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uint256T, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "to", Type: addressT}, {Name: "amount", Type: uint256T}}
}()

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(common.Big1, 256), common.Big1)

// EncodeMint packs (beneficiary, amount) the way abi.encode(address,uint256) does.
func EncodeMint(beneficiary common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: amount out of range", ErrInvalidPayload)
	}
	return mintArgs.Pack(beneficiary, amount)
}

// DecodeMint is the inverse of EncodeMint.
func DecodeMint(payload []byte) (common.Address, *big.Int, error) {
	if len(payload) != 64 {
		return common.Address{}, nil, fmt.Errorf("%w: length %d", ErrInvalidPayload, len(payload))
	}
	vals, err := mintArgs.Unpack(payload)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	to, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, nil, ErrInvalidPayload
	}
	amount, ok := vals[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, ErrInvalidPayload
	}
	return to, amount, nil
}
