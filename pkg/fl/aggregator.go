package fl

import "fmt"

// FedAvgAggregator averages update values weighted by each update's scalar.
type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(updates []UpdateEnvelope) ([]float64, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	length := updates[0].Update.Len()
	aggregated := make([]float64, length)
	var totalWeight float64

	for _, u := range updates {
		if u.Update.Len() != length {
			return nil, fmt.Errorf("%w: expected %d values, got %d", ErrLocalModelLengthMismatch, length, u.Update.Len())
		}

		weight := u.Scalar
		if weight <= 0 {
			weight = 1
		}
		totalWeight += weight

		for i, v := range u.Update.Values {
			aggregated[i] += v * weight
		}
	}

	for i := range aggregated {
		aggregated[i] /= totalWeight
	}

	return aggregated, nil
}
