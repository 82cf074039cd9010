package gossipmember

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when a node address can not be parsed.
var ErrInvalidAddress = errors.New("invalid node address")

// Tick is a reading of the shared logical clock.  It is not wall time.
type Tick int64

// Address identifies a node instance.  Two addresses are equal iff both the
// id and the port match, so Address is safe to use as a map key.
type Address struct {
	ID   int32
	Port int16
}

// ParseAddress parses an address in the form "id:port".
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Address{}, fmt.Errorf("%w: %q (expected id:port)", ErrInvalidAddress, s)
	}
	id, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("%w: bad id in %q: %v", ErrInvalidAddress, s, err)
	}
	port, err := strconv.ParseInt(parts[1], 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: bad port in %q: %v", ErrInvalidAddress, s, err)
	}
	return Address{ID: int32(id), Port: int16(port)}, nil
}

// MustParseAddress is like ParseAddress but panics on error.  Intended for
// tests and constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromWire builds an Address from the wider integers used on the
// wire, rejecting values that do not fit.
func AddressFromWire(id, port int64) (Address, error) {
	if id < math.MinInt32 || id > math.MaxInt32 {
		return Address{}, fmt.Errorf("%w: id %d out of range", ErrInvalidAddress, id)
	}
	if port < math.MinInt16 || port > math.MaxInt16 {
		return Address{}, fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, port)
	}
	return Address{ID: int32(id), Port: int16(port)}, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.ID, a.Port)
}

// Entry is one row of a node's view of a peer.
type Entry struct {
	Address Address
	// Heartbeat is a liveness proof, not a timestamp.
	Heartbeat int64
	// LastRefreshed is the local tick at which the entry was last confirmed alive.
	LastRefreshed Tick
}

// Age returns how many ticks have passed since the entry was last refreshed.
func (e Entry) Age(now Tick) Tick {
	return now - e.LastRefreshed
}
