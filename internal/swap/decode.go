package swap

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
	"github.com/mobiusAMM/mobius-pool-registry/internal/multicall"
)

const wordSize = 32

var (
	ErrFailedCall  = errors.New("call failed or returned no data")
	ErrMalformed   = errors.New("malformed return data")
	ErrUnknownKind = errors.New("unknown call kind")
)

// Storage is the fee section of swapStorage().
type Storage struct {
	SwapFee            *big.Int
	AdminFee           *big.Int
	DefaultDepositFee  *big.Int
	DefaultWithdrawFee *big.Int
}

// Value is one decoded getter result. Only the field matching Kind is set.
type Value struct {
	Kind    Kind
	Pool    model.Pool
	Int     *big.Int
	Storage Storage
	Bool    bool
}

// DecodeError identifies the call whose result could not be decoded.
type DecodeError struct {
	Position int
	Kind     Kind
	Pool     model.Pool
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s of pool %s at position %d: %v", e.Kind, e.Pool.Address.Hex(), e.Position, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) FaultClass() fault.Class { return fault.ClassDecode }

// Decode decodes one raw result according to kind.
func Decode(kind Kind, raw multicall.RawResult) (Value, error) {
	if !raw.Success {
		return Value{}, ErrFailedCall
	}

	switch kind {
	case AmplificationFactor:
		words, err := splitWords(raw.ReturnData, 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Int: words[0]}, nil
	case SwapStorage:
		words, err := splitWords(raw.ReturnData, 4)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Storage: Storage{
			SwapFee:            words[0],
			AdminFee:           words[1],
			DefaultDepositFee:  words[2],
			DefaultWithdrawFee: words[3],
		}}, nil
	case Paused:
		words, err := splitWords(raw.ReturnData, 1)
		if err != nil {
			return Value{}, err
		}
		switch words[0].Sign() {
		case 0:
			return Value{Kind: kind, Bool: false}, nil
		default:
			if words[0].Cmp(big.NewInt(1)) != 0 {
				return Value{}, fmt.Errorf("%w: bool word is %s", ErrMalformed, words[0])
			}
			return Value{Kind: kind, Bool: true}, nil
		}
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// DecodeAll decodes raws[i] with reqs[i].Kind. The first failure aborts and
// is reported with its absolute position.
func DecodeAll(reqs []Request, raws []multicall.RawResult) ([]Value, error) {
	if len(reqs) != len(raws) {
		return nil, fault.Integrity(fmt.Errorf("decode: %d requests but %d results", len(reqs), len(raws)))
	}

	values := make([]Value, len(raws))
	for i, raw := range raws {
		value, err := Decode(reqs[i].Kind, raw)
		if err != nil {
			return nil, &DecodeError{Position: i, Kind: reqs[i].Kind, Pool: reqs[i].Pool, Err: err}
		}
		value.Pool = reqs[i].Pool
		values[i] = value
	}
	return values, nil
}

func splitWords(data []byte, n int) ([]*big.Int, error) {
	if len(data) == 0 {
		return nil, ErrFailedCall
	}
	if len(data) != n*wordSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrMalformed, n*wordSize, len(data))
	}
	words := make([]*big.Int, n)
	for i := range words {
		words[i] = new(big.Int).SetBytes(data[i*wordSize : (i+1)*wordSize])
	}
	return words, nil
}
