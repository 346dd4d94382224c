package ptycho

// MinStep is the smallest step the line search tries before giving up.
const MinStep = 1e-32

// LineSearch returns a step gamma along the detector-plane direction fd
// from the point fu that does not increase the objective.
//
// Starting from the seed, gamma is halved while the objective at
// fu + gamma*fd exceeds the objective at fu. The operator is linear in the
// optimised field, so fu + gamma*fd is the forward image of u + gamma*d and
// no operator call is needed per trial. When the search bottoms out at
// MinStep the returned step is 0 and the caller leaves the field unchanged.
func LineSearch(model NoiseModel, gamma float64, fu, fd []complex128, data []float64) float64 {
	f0 := model.Objective(fu, data)
	for f0-model.objectiveAlong(fu, fd, gamma, data) < 0 && gamma > MinStep {
		gamma *= 0.5
	}
	if gamma <= MinStep {
		return 0
	}
	return gamma
}
