package nn

import (
	"math"
	"math/rand"

	"github.com/robustfl/flsim/tensor"
)

// Xavier creates a tensor initialized with Xavier/Glorot uniform values.
//
// Values are drawn from U(-limit, limit) with limit = sqrt(6 / (fanIn + fanOut)),
// which keeps activation variance stable through linear layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor[float32] {
	limit := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -limit, limit, rng)
}
