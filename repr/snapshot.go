package repr

import (
	"encoding/json"
	"fmt"
)

// A Snapshot is one periodic resource-usage capture (event_top_data), emitted by the collector
// roughly every 15 seconds.  The nested per-metric members are decoded up front because the
// timeline and the meters consult them on every playback tick; anything else stays in Fields.
//
// Memory is nil in most snapshots - the collector includes memory totals only on a slower cycle -
// so consumers walk backward in the timeline to the nearest snapshot that has it.
type Snapshot struct {
	Id        string
	Muid      string
	Time      float64
	Memory    map[string]int64
	Processes map[string]json.RawMessage
	Fields    map[string]json.RawMessage
	Raw       []byte
}

type snapshotFields struct {
	Memory    map[string]int64           `json:"memory"`
	Processes map[string]json.RawMessage `json:"processes"`
}

// ParseSnapshot decodes the nested snapshot data of an event_top_data record.

func ParseSnapshot(r *Record) (*Snapshot, error) {
	if r.Kind != KindSnapshot {
		return nil, fmt.Errorf("Not a snapshot record: %s", r.Schema)
	}
	var sf snapshotFields
	if err := json.Unmarshal(r.Raw, &sf); err != nil {
		return nil, fmt.Errorf("Undecodable snapshot record %s: %w", r.Id, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &fields); err != nil {
		return nil, fmt.Errorf("Undecodable snapshot record %s: %w", r.Id, err)
	}
	return &Snapshot{
		Id:        r.Id,
		Muid:      r.Muid,
		Time:      r.Time,
		Memory:    sf.Memory,
		Processes: sf.Processes,
		Fields:    fields,
		Raw:       r.Raw,
	}, nil
}

// Field returns the raw value of a top-level snapshot member ("cpu_time", "disk", "network", ...),
// or false if the snapshot does not have it.

func (s *Snapshot) Field(name string) (json.RawMessage, bool) {
	v, found := s.Fields[name]
	return v, found
}
