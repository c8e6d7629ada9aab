// Wire representation of replay records.
//
// The backend delivers newline-delimited JSON objects.  Every object carries a globally unique
// `id`, a `schema` tag whose prefix names the record kind, and either an embedded `time` (float
// epoch seconds) or a `valid_from`/`valid_to` pair for interval-lived kinds such as sessions,
// connections and listening sockets.  We decode only the envelope eagerly; the full line is
// retained verbatim so that consumers (and the export path) see exactly what arrived.

package repr

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// MT: Constant after initialization; immutable
	MissingIdErr     = errors.New("Record has no id")
	MissingSchemaErr = errors.New("Record has no schema tag")
)

// A Record is owned by the record store once ingested and must be treated as read-only by all
// consumers, including its Raw bytes.
type Record struct {
	Id        string
	Kind      Kind
	Schema    string
	Time      float64
	ValidFrom float64
	ValidTo   float64
	Muid      string
	Raw       []byte
}

// EffectiveTime is the value used for last-writer-wins versioning: the embedded time when present,
// else the start of the validity interval.

func (r *Record) EffectiveTime() float64 {
	if r.Time != 0 {
		return r.Time
	}
	return r.ValidFrom
}

type envelope struct {
	Id        string  `json:"id"`
	Schema    string  `json:"schema"`
	Time      float64 `json:"time"`
	ValidFrom float64 `json:"valid_from"`
	ValidTo   float64 `json:"valid_to"`
	Muid      string  `json:"muid"`
}

// ParseRecord decodes one line.  The line must not be blank; blank-line filtering is the caller's
// business.  The returned record keeps its own copy of the line.

func ParseRecord(line []byte) (*Record, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("Undecodable record: %w", err)
	}
	if env.Id == "" {
		return nil, MissingIdErr
	}
	if env.Schema == "" {
		return nil, MissingSchemaErr
	}
	raw := make([]byte, len(line))
	copy(raw, line)
	return &Record{
		Id:        env.Id,
		Kind:      KindOfSchema(env.Schema),
		Schema:    env.Schema,
		Time:      env.Time,
		ValidFrom: env.ValidFrom,
		ValidTo:   env.ValidTo,
		Muid:      env.Muid,
		Raw:       raw,
	}, nil
}

// A Process is the decoded view of a model_process record that the tree builder needs: the flat
// parent reference and the numeric pid that identifies the conventional roots.
type Process struct {
	Id    string
	Muid  string
	Pid   int64
	Ppuid string
}

type processFields struct {
	Pid   *int64 `json:"pid"`
	Ppuid string `json:"ppuid"`
}

var NotAProcessErr = errors.New("Not a process record")

func ParseProcess(r *Record) (Process, error) {
	if r.Kind != KindProcess {
		return Process{}, NotAProcessErr
	}
	var pf processFields
	if err := json.Unmarshal(r.Raw, &pf); err != nil {
		return Process{}, fmt.Errorf("Undecodable process record %s: %w", r.Id, err)
	}
	if pf.Pid == nil {
		return Process{}, fmt.Errorf("Process record %s has no pid", r.Id)
	}
	return Process{
		Id:    r.Id,
		Muid:  r.Muid,
		Pid:   *pf.Pid,
		Ppuid: pf.Ppuid,
	}, nil
}
