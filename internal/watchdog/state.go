package watchdog

// State is the health of a supervised target as seen by the checker.
type State uint8

const (
	// Idle means registered but no heartbeat received yet.
	Idle State = iota
	// Healthy means a heartbeat arrived within the timeout.
	Healthy
	// Warning means more than 75% of the timeout has elapsed.
	Warning
	// Unresponsive means the timeout elapsed and recovery is pending.
	Unresponsive
	// Recovered means the recovery action has run for the current
	// silence; only a fresh heartbeat rearms the timeout path.
	Recovered

	stateCount = 5
)

var stateNames = [stateCount]string{
	Idle:         "IDLE",
	Healthy:      "HEALTHY",
	Warning:      "WARNING",
	Unresponsive: "UNRESPONSIVE",
	Recovered:    "RECOVERED",
}

// String returns the upper-case state name, or "UNKNOWN" for an
// out-of-range value.
func (s State) String() string {
	if s >= stateCount {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// MarshalJSON renders the state as its quoted name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
