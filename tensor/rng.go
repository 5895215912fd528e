package tensor

import "math/rand"

// Randn creates a float32 tensor with values drawn from a standard normal
// distribution using the supplied generator.
//
// All randomness in flsim flows through explicit *rand.Rand values so that
// clients running in the same process cannot perturb each other's streams.
func Randn(shape Shape, rng *rand.Rand) *Tensor[float32] {
	t := Zeros[float32](shape)
	data := t.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return t
}

// Uniform creates a float32 tensor with values drawn uniformly from
// [low, high) using the supplied generator.
func Uniform(shape Shape, low, high float32, rng *rand.Rand) *Tensor[float32] {
	t := Zeros[float32](shape)
	data := t.Data()
	span := high - low
	for i := range data {
		data[i] = low + span*rng.Float32()
	}
	return t
}
