package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepLRDecaysEveryStepSize(t *testing.T) {
	sgd := NewSGD(nil, SGDConfig{LR: 1.0})
	sched := NewMinCapableStepLR(nil, sgd, 2, 0.1, 0.005)

	sched.Step()
	assert.Equal(t, float32(1.0), sgd.LR())

	sched.Step()
	assert.InDelta(t, 0.1, float64(sgd.LR()), 1e-7)

	sched.Step()
	sched.Step()
	assert.InDelta(t, 0.01, float64(sgd.LR()), 1e-7)
	assert.Equal(t, 4, sched.StepCount())
}

func TestStepLREnforcesFloor(t *testing.T) {
	sgd := NewSGD(nil, SGDConfig{LR: 1.0})
	sched := NewMinCapableStepLR(nil, sgd, 1, 0.1, 0.005)

	for i := 0; i < 10; i++ {
		sched.Step()
	}
	assert.Equal(t, float32(0.005), sgd.LR())
}

func TestStepLRNoDecayWithZeroStepSize(t *testing.T) {
	sgd := NewSGD(nil, SGDConfig{LR: 1.0})
	sched := NewMinCapableStepLR(nil, sgd, 0, 0.1, 0.005)

	sched.Step()
	sched.Step()
	assert.Equal(t, float32(1.0), sgd.LR())
}
