package panel

// State is the progress of a Session. It only ever moves forward.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateDomainActive
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateDomainActive:
		return "domain-active"
	default:
		return "unknown"
	}
}
