package identity

import (
	"fmt"
	"strings"

	"github.com/and161185/fedicache/internal/errs"
)

// Mode selects where an identity's store lives.
type Mode int

const (
	// Persistent stores are encrypted SQLite files under the manager root.
	Persistent Mode = iota
	// Ephemeral stores live in memory and vanish on close.
	Ephemeral
)

func (m Mode) String() string {
	switch m {
	case Persistent:
		return "persistent"
	case Ephemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "persistent" or "ephemeral".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "persistent":
		return Persistent, nil
	case "ephemeral":
		return Ephemeral, nil
	default:
		return 0, fmt.Errorf("%w: unknown store mode %q", errs.ErrInvalidArgument, s)
	}
}
