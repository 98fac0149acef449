package multicall

import (
	"fmt"

	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
)

// TransportError reports a batch the endpoint could not execute.
type TransportError struct {
	Batch  int
	Offset int
	Calls  int
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("batch %d (calls %d..%d): %v", e.Batch, e.Offset, e.Offset+e.Calls-1, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) FaultClass() fault.Class { return fault.ClassTransport }

// IntegrityError reports a batch whose result count differs from its call count.
type IntegrityError struct {
	Batch    int
	Offset   int
	Expected int
	Got      int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("batch %d result size mismatch: expected %d, got %d", e.Batch, e.Expected, e.Got)
}

func (e *IntegrityError) FaultClass() fault.Class { return fault.ClassIntegrity }
