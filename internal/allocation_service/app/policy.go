package app

import (
	"math/rand"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// RemovalPolicy selects which bindings to drop when a line exceeds a
// lowered segment cap. The deployed policy is unweighted random: no
// priority preference among bound operators. Swap the implementation if
// deterministic tie-breaking is ever required.
type RemovalPolicy interface {
	SelectForRemoval(bindings []*domain.LineOperatorBinding, excess int) []*domain.LineOperatorBinding
}

type randomRemovalPolicy struct{}

// NewRandomRemovalPolicy returns the default unweighted-random policy.
func NewRandomRemovalPolicy() RemovalPolicy {
	return randomRemovalPolicy{}
}

func (randomRemovalPolicy) SelectForRemoval(bindings []*domain.LineOperatorBinding, excess int) []*domain.LineOperatorBinding {
	if excess <= 0 {
		return nil
	}
	if excess >= len(bindings) {
		excess = len(bindings)
	}
	shuffled := make([]*domain.LineOperatorBinding, len(bindings))
	copy(shuffled, bindings)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:excess]
}
