package sysinfo

import "math/rand"

const (
	tempNominal = 42.0
	tempMin     = 35.0
	tempMax     = 70.0
	tempStep    = 0.5
)

// tempSensor simulates the board temperature channel as a bounded
// random walk. Boards without a readable thermal zone still report a
// plausible value, which keeps the telemetry shape stable everywhere.
type tempSensor struct {
	rng *rand.Rand
	c   float64
}

func newTempSensor(seed int64) *tempSensor {
	return &tempSensor{
		rng: rand.New(rand.NewSource(seed)),
		c:   tempNominal,
	}
}

// read advances the walk one step and returns the new reading.
func (t *tempSensor) read() float64 {
	t.c += (t.rng.Float64()*2 - 1) * tempStep
	if t.c < tempMin {
		t.c = tempMin
	}
	if t.c > tempMax {
		t.c = tempMax
	}
	return t.c
}
