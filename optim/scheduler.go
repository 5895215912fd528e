package optim

import "github.com/sirupsen/logrus"

// MinCapableStepLR decays the learning rate by a multiplicative factor every
// stepSize scheduler steps, but never below a configured floor.
//
// The federated client advances the scheduler once per local epoch; the floor
// keeps long experiments from decaying the rate to uselessness.
type MinCapableStepLR struct {
	logger    logrus.FieldLogger
	optimizer Optimizer
	stepSize  int
	gamma     float32
	minLR     float32
	stepCount int
}

// NewMinCapableStepLR creates a step-decay scheduler bound to an optimizer.
//
// Every stepSize calls to Step, the optimizer's learning rate is multiplied
// by gamma; the result is clamped to minLR.
func NewMinCapableStepLR(logger logrus.FieldLogger, optimizer Optimizer, stepSize int, gamma, minLR float32) *MinCapableStepLR {
	return &MinCapableStepLR{
		logger:    logger,
		optimizer: optimizer,
		stepSize:  stepSize,
		gamma:     gamma,
		minLR:     minLR,
	}
}

// Step advances the scheduler by one step, decaying the learning rate when
// the step count reaches a multiple of the configured step size.
func (s *MinCapableStepLR) Step() {
	s.stepCount++
	if s.stepSize <= 0 || s.stepCount%s.stepSize != 0 {
		return
	}
	s.decayLR()
}

// StepCount returns the number of steps taken so far.
func (s *MinCapableStepLR) StepCount() int {
	return s.stepCount
}

func (s *MinCapableStepLR) decayLR() {
	current := s.optimizer.LR()
	next := current * s.gamma
	if next < s.minLR {
		next = s.minLR
	}
	if next == current {
		return
	}
	s.optimizer.SetLR(next)
	if s.logger != nil {
		s.logger.Debugf("Learning rate decayed: %f -> %f", current, next)
	}
}
