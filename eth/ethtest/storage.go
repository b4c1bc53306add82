package ethtest

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/airchains-network/txpipe/types"
)

// SimpleStorageABI describes a contract holding one non-zero uint256
const SimpleStorageABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"initial","type":"uint256"}]},
	{"type":"function","name":"get","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"set","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]}
]`

const storeGas = 20000

var errZeroValue = errors.New("value must be nonzero")

// SimpleStorageArtifact returns the artifact of SimpleStorageABI
func SimpleStorageArtifact() *types.ContractArtifact {
	parsed, err := abi.JSON(strings.NewReader(SimpleStorageABI))
	if err != nil {
		panic(err)
	}
	return types.NewContractArtifact("SimpleStorage", parsed, []byte{0x60, 0x80})
}

// SimpleStorage emulates SimpleStorageABI. set(0) reverts.
type SimpleStorage struct {
	mu    sync.Mutex
	abi   abi.ABI
	value *big.Int
}

func NewSimpleStorage(initial *big.Int) *SimpleStorage {
	return &SimpleStorage{
		abi:   SimpleStorageArtifact().ABI,
		value: new(big.Int).Set(initial),
	}
}

// Value reads storage directly
func (s *SimpleStorage) Value() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.value)
}

func (s *SimpleStorage) Call(_ common.Address, data []byte) ([]byte, error) {
	method, args, err := s.decode(data)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch method.Name {
	case "get":
		return method.Outputs.Pack(s.value)
	case "set":
		if args[0].(*big.Int).Sign() == 0 {
			return nil, errZeroValue
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unhandled method %s", method.Name)
}

func (s *SimpleStorage) Execute(_ common.Address, _ *big.Int, data []byte) (uint64, error) {
	method, args, err := s.decode(data)
	if err != nil {
		return 0, err
	}
	if method.Name != "set" {
		return 0, nil
	}
	v := args[0].(*big.Int)
	if v.Sign() == 0 {
		return 0, errZeroValue
	}
	s.mu.Lock()
	s.value = new(big.Int).Set(v)
	s.mu.Unlock()
	return storeGas, nil
}

func (s *SimpleStorage) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("missing selector")
	}
	method, err := s.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}
