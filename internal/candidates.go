package internal

import "time"

// Entry is the winning source file for one destination path.
type Entry struct {
	Filename        string     `json:"filename"`
	SourcePath      string     `json:"source"`
	DestinationPath string     `json:"destination"`
	Digest          string     `json:"digest,omitempty"`
	Taken           time.Time  `json:"taken"`
	TimeSource      TimeSource `json:"time_source,omitempty"`
	Metadata        Metadata   `json:"metadata"`
}

// Decision is the outcome of admitting an entry into a Plan.
type Decision string

const (
	DecisionInserted Decision = "inserted"
	DecisionReplaced Decision = "replaced"
	DecisionKept     Decision = "kept"
)

// Plan maps destination paths to their winning entries. Entries iterate in
// the order their destination was first admitted. A Plan is not safe for
// concurrent use; a single owner admits entries.
type Plan struct {
	order   []string
	entries map[string]Entry
}

func NewPlan() *Plan {
	return &Plan{entries: make(map[string]Entry)}
}

// Admit offers e for its destination path. A new destination is always
// taken. An occupied one changes hands only when the incumbent has no
// GPSLatitude and e does; otherwise the first writer stays.
func (p *Plan) Admit(e Entry) Decision {
	cur, ok := p.entries[e.DestinationPath]
	if !ok {
		p.order = append(p.order, e.DestinationPath)
		p.entries[e.DestinationPath] = e
		return DecisionInserted
	}
	if !cur.Metadata.HasGPS() && e.Metadata.HasGPS() {
		p.entries[e.DestinationPath] = e
		return DecisionReplaced
	}
	return DecisionKept
}

// Get returns the entry for a destination path.
func (p *Plan) Get(dest string) (Entry, bool) {
	e, ok := p.entries[dest]
	return e, ok
}

func (p *Plan) Len() int {
	return len(p.order)
}

// Entries returns the entries in first-seen destination order.
func (p *Plan) Entries() []Entry {
	out := make([]Entry, 0, len(p.order))
	for _, dest := range p.order {
		out = append(out, p.entries[dest])
	}
	return out
}
