package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const virtualPrefix = "virtual-"

// Selector is a parsed client reference to a slot: either a stored slot id or
// a virtual window identified only by its start time.
type Selector struct {
	Virtual   bool
	SlotID    uuid.UUID
	StartTime string
	EndTime   string
}

func VirtualSelector(startTime string) string {
	return virtualPrefix + startTime
}

func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}, fmt.Errorf("%w: slot selector is required", ErrValidationFailed)
	}

	if rest, ok := strings.CutPrefix(raw, virtualPrefix); ok {
		start, err := ParseClock(rest)
		if err != nil {
			return Selector{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		end := start + int(SlotDuration/time.Minute)
		if end >= minutesPerDay {
			return Selector{}, fmt.Errorf("%w: window starting %s runs past midnight", ErrValidationFailed, FormatClock(start))
		}
		return Selector{Virtual: true, StartTime: FormatClock(start), EndTime: FormatClock(end)}, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return Selector{}, fmt.Errorf("%w: slot selector %q is neither a slot id nor a virtual window", ErrValidationFailed, raw)
	}
	return Selector{SlotID: id}, nil
}

func (s Selector) String() string {
	if s.Virtual {
		return VirtualSelector(s.StartTime)
	}
	return s.SlotID.String()
}
