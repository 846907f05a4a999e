package orders

import "fmt"

// Event drives an Active order into a terminal status.
type Event int

const (
	EventCancel Event = iota
	EventSettle
	EventExpire
)

func (e Event) String() string {
	switch e {
	case EventCancel:
		return "cancel"
	case EventSettle:
		return "settle"
	case EventExpire:
		return "expire"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s != StatusActive }

// NextStatus applies ev to from. Only Active orders move; everything else
// yields ErrOrderNotActive.
func NextStatus(from Status, ev Event) (Status, error) {
	if from.Terminal() {
		return from, ErrOrderNotActive
	}
	switch ev {
	case EventCancel:
		return StatusCancelled, nil
	case EventSettle:
		return StatusCompleted, nil
	case EventExpire:
		return StatusExpired, nil
	}
	return from, fmt.Errorf("unknown event %v", ev)
}
