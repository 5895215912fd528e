package client

import "fmt"

// Objective selects the local training objective for one round.
type Objective string

// Supported training objectives.
const (
	// FedAvg trains on the plain task loss.
	FedAvg Objective = "fedavg"

	// FedProx adds the proximal penalty (mu/2)*||w - w0||^2 anchored at the
	// round-start parameters.
	FedProx Objective = "fedprox"

	// FedGreedy uses the same proximal penalty as FedProx; the greedy part is
	// how the aggregator picks updates, which is outside the client.
	FedGreedy Objective = "fedgreedy"
)

// ParseObjective converts a config string into an Objective.
func ParseObjective(s string) (Objective, error) {
	switch Objective(s) {
	case FedAvg, FedProx, FedGreedy:
		return Objective(s), nil
	default:
		return "", fmt.Errorf("unknown training objective %q", s)
	}
}

// proximal reports whether the objective adds the proximal penalty.
func (o Objective) proximal() bool {
	return o == FedProx || o == FedGreedy
}
