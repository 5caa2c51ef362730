package http

// ContentState tracks what happened to the request body.
type ContentState uint8

const (
	// NotLoaded is the initial state of every request.
	NotLoaded ContentState = iota
	// Empty means the request had no body at all.
	Empty
	// Cached means the body (or all of its parts) is held in memory.
	Cached
	// WantsSave means the body is being streamed onto the disk.
	WantsSave
	// Saved means every uploaded part was flushed onto the disk.
	Saved
	// Lost means the connection broke before the body was consumed.
	Lost
	// Corrupted means the body couldn't be decoded.
	Corrupted
	// PayloadExceeded means the body overflowed the size limit.
	PayloadExceeded
	// SaveException means writing an upload onto the disk failed.
	SaveException
)

func (c ContentState) String() string {
	switch c {
	case NotLoaded:
		return "not loaded"
	case Empty:
		return "empty"
	case Cached:
		return "cached"
	case WantsSave:
		return "wants save"
	case Saved:
		return "saved"
	case Lost:
		return "lost"
	case Corrupted:
		return "corrupted"
	case PayloadExceeded:
		return "payload exceeded"
	case SaveException:
		return "save exception"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (c ContentState) Terminal() bool {
	return c != NotLoaded && c != WantsSave
}

// Failed reports whether the state describes an unusable body.
func (c ContentState) Failed() bool {
	switch c {
	case Lost, Corrupted, PayloadExceeded, SaveException:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from c to next is legal. States only move forward:
// NotLoaded may become anything, WantsSave may only be resolved and terminal states stay.
func (c ContentState) CanTransition(next ContentState) bool {
	switch c {
	case NotLoaded:
		return next != NotLoaded
	case WantsSave:
		return next.Terminal() && next != Empty && next != Cached
	default:
		return false
	}
}
