package swap

import (
	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/multicall"
)

// Request is a call tagged with the pool and getter it belongs to.
type Request struct {
	Pool model.Pool
	Kind Kind
	Call multicall.Call
}

// BuildRequests returns GroupSize requests per pool, pools in input order and
// each pool's calls in Layout order.
func BuildRequests(pools []model.Pool) []Request {
	reqs := make([]Request, 0, len(pools)*GroupSize)
	for _, pool := range pools {
		for _, kind := range Layout {
			reqs = append(reqs, Request{
				Pool: pool,
				Kind: kind,
				Call: multicall.Call{
					Target:   pool.Address,
					CallData: kind.Selector(),
				},
			})
		}
	}
	return reqs
}

// Calls strips the tags off reqs.
func Calls(reqs []Request) []multicall.Call {
	calls := make([]multicall.Call, len(reqs))
	for i, req := range reqs {
		calls[i] = req.Call
	}
	return calls
}
