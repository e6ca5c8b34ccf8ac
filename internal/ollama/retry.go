package ollama

// RetryPolicy controls re-generation after a malformed structured response.
// Each retry lowers the sampling temperature by the decay factor, never
// dropping below the floor, so later attempts are more deterministic.
type RetryPolicy struct {
	MaxRetries int
	Decay      float64
	Floor      float64
}

// DefaultRetryPolicy allows two retries after the initial attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Decay: 0.8, Floor: 0.1}
}

// TemperatureAt returns the temperature for the given attempt. Attempt 0
// is the initial call and uses the base temperature as given; the floor
// only applies once decay kicks in.
func (p RetryPolicy) TemperatureAt(attempt int, base float64) float64 {
	temp := base
	for i := 0; i < attempt; i++ {
		temp *= p.Decay
		if temp < p.Floor {
			temp = p.Floor
		}
	}
	return temp
}
