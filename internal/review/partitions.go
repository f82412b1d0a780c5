package review

import (
	"strings"

	"userdeck/internal/store"
)

// View is a rendering copy of the three partitions.
type View struct {
	Pending  []Submission `json:"pending"`
	Approved []Submission `json:"approved"`
	Rejected []Submission `json:"rejected"`
}

// Counts returns the partition sizes keyed by status name.
func (v View) Counts() map[string]int {
	return map[string]int{
		StatusPending.String():  len(v.Pending),
		StatusApproved.String(): len(v.Approved),
		StatusRejected.String(): len(v.Rejected),
	}
}

type partitions [statusCount][]Submission

// classify derives all three partitions from a full snapshot, keeping snapshot order.
func classify(records []store.Submission) partitions {
	var parts partitions
	for i := range parts {
		parts[i] = []Submission{}
	}
	for _, record := range records {
		item := fromRecord(record)
		parts[item.Status] = append(parts[item.Status], item)
	}
	return parts
}

func (p *partitions) find(id string) (Status, int, bool) {
	for _, status := range allStatuses {
		for i, item := range p[status] {
			if item.ID == id {
				return status, i, true
			}
		}
	}
	return StatusPending, -1, false
}

// move takes the record out of its partition and puts it at the head of target's.
func (p *partitions) move(id string, target Status) (Submission, Status, bool) {
	source, index, ok := p.find(id)
	if !ok {
		return Submission{}, source, false
	}
	item := p[source][index]
	p[source] = append(p[source][:index:index], p[source][index+1:]...)

	item.Status = target
	item.Optimistic = true
	if target == StatusPending {
		item.ReviewedAt = nil
	}
	p[target] = append([]Submission{item}, p[target]...)
	return item, source, true
}

func (p *partitions) view(term string) View {
	term = strings.ToLower(strings.TrimSpace(term))
	return View{
		Pending:  filterReference(p[StatusPending], term),
		Approved: filterReference(p[StatusApproved], term),
		Rejected: filterReference(p[StatusRejected], term),
	}
}

func filterReference(items []Submission, term string) []Submission {
	out := make([]Submission, 0, len(items))
	for _, item := range items {
		if item.matchesReference(term) {
			out = append(out, item)
		}
	}
	return out
}

// ArrivalCount is the number of new pending submissions between two consecutive
// snapshots. Shrinking or unchanged partitions yield zero.
func ArrivalCount(previousPending, nextPending int) int {
	if nextPending <= previousPending {
		return 0
	}
	return nextPending - previousPending
}
