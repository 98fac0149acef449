package multicall

import "context"

//go:generate mockgen -source=endpoint.go -destination=mocks/mock_endpoint.go -package=mocks

// Endpoint executes one batch of calls and returns one RawResult per call,
// in call order. An error fails the whole batch.
type Endpoint interface {
	Aggregate(ctx context.Context, batch []Call) ([]RawResult, error)
}
