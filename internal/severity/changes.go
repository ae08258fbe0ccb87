package severity

import (
	"encoding/json"
	"strings"
)

// ChangeSet records which dimensions of a snapshot differ between two samples.
type ChangeSet uint8

const (
	StateChanged ChangeSet = 1 << iota
	PressureChanged
)

// Diff computes the changes between two (state, pressure) pairs.
func Diff(oldState, oldPressure, newState, newPressure Level) ChangeSet {
	var c ChangeSet
	if oldState != newState {
		c |= StateChanged
	}
	if oldPressure != newPressure {
		c |= PressureChanged
	}
	return c
}

func (c ChangeSet) Has(flag ChangeSet) bool { return c&flag != 0 }

func (c ChangeSet) Empty() bool { return c == 0 }

// Names returns the set members in a stable order.
func (c ChangeSet) Names() []string {
	names := make([]string, 0, 2)
	if c.Has(StateChanged) {
		names = append(names, "state")
	}
	if c.Has(PressureChanged) {
		names = append(names, "pressure")
	}
	return names
}

func (c ChangeSet) String() string {
	if c.Empty() {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}

func (c ChangeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Names())
}

func (c *ChangeSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out ChangeSet
	for _, n := range names {
		switch n {
		case "state":
			out |= StateChanged
		case "pressure":
			out |= PressureChanged
		}
	}
	*c = out
	return nil
}
