package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/airchains-network/txpipe/types"
)

// ParseArgs converts command line strings into the Go values the ABI encoder expects for
// the inputs of fn
func ParseArgs(artifact *types.ContractArtifact, fn string, raw []string) ([]interface{}, error) {
	if artifact == nil {
		return nil, fmt.Errorf("%w: contract artifact is required", types.ErrInvalidTransactionParameters)
	}
	method, ok := artifact.ABI.Methods[fn]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no function %q", types.ErrUnknownFunction, artifact.Name, fn)
	}
	if len(raw) != len(method.Inputs) {
		return nil, fmt.Errorf("%w: %s.%s takes %d arguments, got %d",
			types.ErrArgumentTypeMismatch, artifact.Name, fn, len(method.Inputs), len(raw))
	}
	args := make([]interface{}, len(raw))
	for i, input := range method.Inputs {
		v, err := parseArg(input.Type, strings.TrimSpace(raw[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s argument %d (%s): %v",
				types.ErrArgumentTypeMismatch, artifact.Name, fn, i, input.Type.String(), err)
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(t abi.Type, s string) (interface{}, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return fitInteger(t, n)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%q is not an address", s)
		}
		return common.HexToAddress(s), nil
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	}
	return nil, fmt.Errorf("type %s cannot be given on the command line", t.String())
}

func fitInteger(t abi.Type, n *big.Int) (interface{}, error) {
	var lo, hi *big.Int
	if t.T == abi.UintTy {
		lo = new(big.Int)
		hi = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(t.Size)), big.NewInt(1))
	} else {
		hi = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1)), big.NewInt(1))
		lo = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1)))
	}
	if n.Cmp(lo) < 0 || n.Cmp(hi) > 0 {
		return nil, fmt.Errorf("%s out of range for %s", n, t.String())
	}

	goType := t.GetType()
	if goType.Kind() == reflect.Ptr {
		return n, nil
	}
	v := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v.Interface(), nil
}

// FormatValue renders a decoded ABI value for display
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return hexutil.Encode(b)
	}
	return fmt.Sprint(v)
}
