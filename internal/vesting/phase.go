package vesting

// Phase is the lifecycle state of a schedule at a given instant.
type Phase int

const (
	PreCliff      Phase = iota // before Start + Cliff
	Ramping                    // past the cliff, not fully vested
	FullyVested                // fully vested, not fully released
	FullyReleased              // terminal: released == Total
)

func (p Phase) String() string {
	switch p {
	case PreCliff:
		return "PreCliff"
	case Ramping:
		return "Ramping"
	case FullyVested:
		return "FullyVested"
	case FullyReleased:
		return "FullyReleased"
	}
	return "Unknown"
}
