package repr

import (
	"errors"
	"testing"
)

func TestKindOfSchema(t *testing.T) {
	cases := []struct {
		schema string
		want   Kind
	}{
		{"model_process:1.2.0", KindProcess},
		{"model_process", KindProcess},
		{"event_top_data:1.0.0", KindSnapshot},
		{"model_listening_socket:2", KindListeningSocket},
		{"event_redflag:proc:1.0", KindRedFlag},
		{"model_flux_capacitor:1.0", KindUnknown},
		{"", KindUnknown},
	}
	for _, c := range cases {
		if got := KindOfSchema(c.schema); got != c.want {
			t.Errorf("KindOfSchema(%q) = %v, want %v", c.schema, got, c.want)
		}
	}
}

func TestParseRecord(t *testing.T) {
	line := []byte(`{"id":"p:1","schema":"model_process:1.1.0","time":1700000000.5,"muid":"mach1","pid":42}`)
	r, err := ParseRecord(line)
	if err != nil {
		t.Fatal(err)
	}
	if r.Id != "p:1" || r.Kind != KindProcess || r.Time != 1700000000.5 || r.Muid != "mach1" {
		t.Fatalf("bad record %+v", r)
	}
	if string(r.Raw) != string(line) {
		t.Fatal("raw line not retained")
	}
	// The record owns a copy of the line
	line[0] = 'X'
	if r.Raw[0] != '{' {
		t.Fatal("raw line aliases the input")
	}
}

func TestParseRecordErrors(t *testing.T) {
	if _, err := ParseRecord([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseRecord([]byte(`{"schema":"model_process"}`)); !errors.Is(err, MissingIdErr) {
		t.Fatal("expected missing id")
	}
	if _, err := ParseRecord([]byte(`{"id":"x"}`)); !errors.Is(err, MissingSchemaErr) {
		t.Fatal("expected missing schema")
	}
}

func TestEffectiveTime(t *testing.T) {
	r := &Record{Time: 10, ValidFrom: 5}
	if r.EffectiveTime() != 10 {
		t.Fatal("embedded time should win")
	}
	r = &Record{ValidFrom: 5, ValidTo: 8}
	if r.EffectiveTime() != 5 {
		t.Fatal("interval kinds fall back to valid_from")
	}
}

func TestParseProcess(t *testing.T) {
	r, err := ParseRecord([]byte(
		`{"id":"p:1","schema":"model_process:1.1.0","time":1,"muid":"m1","pid":1,"ppuid":""}`))
	if err != nil {
		t.Fatal(err)
	}
	p, err := ParseProcess(r)
	if err != nil {
		t.Fatal(err)
	}
	if p.Pid != 1 || p.Id != "p:1" || p.Muid != "m1" {
		t.Fatalf("bad process %+v", p)
	}

	// pid is mandatory, zero is a legal pid so absence must be detected as absence
	r2, _ := ParseRecord([]byte(`{"id":"p:2","schema":"model_process:1.1.0","time":1}`))
	if _, err := ParseProcess(r2); err == nil {
		t.Fatal("expected missing pid error")
	}

	r3, _ := ParseRecord([]byte(`{"id":"m:1","schema":"model_machine:1.0.0","time":1}`))
	if _, err := ParseProcess(r3); !errors.Is(err, NotAProcessErr) {
		t.Fatal("expected kind mismatch")
	}
}

func TestParseSnapshot(t *testing.T) {
	line := []byte(`{"id":"t:1","schema":"event_top_data:1.0.0","time":1000,"muid":"m1",` +
		`"memory":{"MemTotal":16384,"MemFree":1024},` +
		`"processes":{"1":{"cpu":3}},"cpu_time":{"user":10}}`)
	r, err := ParseRecord(line)
	if err != nil {
		t.Fatal(err)
	}
	s, err := ParseSnapshot(r)
	if err != nil {
		t.Fatal(err)
	}
	if s.Time != 1000 || s.Muid != "m1" {
		t.Fatalf("bad snapshot %+v", s)
	}
	if s.Memory["MemTotal"] != 16384 {
		t.Fatal("memory not decoded")
	}
	if len(s.Processes) != 1 {
		t.Fatal("processes not decoded")
	}
	if _, found := s.Field("cpu_time"); !found {
		t.Fatal("field accessor missed cpu_time")
	}

	// Memory is commonly absent and must decode to nil, not an empty map
	r2, _ := ParseRecord([]byte(`{"id":"t:2","schema":"event_top_data:1.0.0","time":1015,"muid":"m1"}`))
	s2, err := ParseSnapshot(r2)
	if err != nil {
		t.Fatal(err)
	}
	if s2.Memory != nil {
		t.Fatal("absent memory should be nil")
	}
}
