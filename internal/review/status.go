package review

import (
	"fmt"
	"strings"
)

// Status is the review state of a submission. The set is closed: every value maps to
// exactly one partition.
type Status uint8

const (
	StatusPending Status = iota
	StatusApproved
	StatusRejected

	statusCount = 3
)

var allStatuses = [statusCount]Status{StatusPending, StatusApproved, StatusRejected}

func (s Status) String() string {
	switch s {
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// ParseStatus accepts the stored spelling of a status, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return StatusPending, fmt.Errorf("unknown review status %q", raw)
	}
}

// classifyStatus maps the stored field to a partition: absent or unrecognised means pending.
func classifyStatus(raw *string) Status {
	if raw == nil {
		return StatusPending
	}
	status, err := ParseStatus(*raw)
	if err != nil {
		return StatusPending
	}
	return status
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
