package command

import (
	"os"
	"path"
	"testing"
	"time"
)

func TestTimeArgsDefaults(t *testing.T) {
	var ta TimeArgs
	if err := ta.Validate(); err != nil {
		t.Fatal(err)
	}
	ago := float64(time.Now().Unix()) - ta.When
	if ago < 14*60 || ago > 16*60 {
		t.Fatalf("default start %v seconds ago", ago)
	}
	if ta.DurationSec != 5*60 {
		t.Fatalf("default duration %d", ta.DurationSec)
	}
}

func TestTimeArgsExplicit(t *testing.T) {
	ta := TimeArgs{Time: "2025-03-01", Duration: "10m"}
	if err := ta.Validate(); err != nil {
		t.Fatal(err)
	}
	start, end := ta.Window()
	if end-start != 600 {
		t.Fatalf("window [%v,%v]", start, end)
	}
	if ta.Time != "2025-03-01" || start != float64(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Unix()) {
		t.Fatalf("start %v", start)
	}

	bad := TimeArgs{Duration: "10x"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestSourceArgsValidation(t *testing.T) {
	var sa SourceArgs
	if err := sa.Validate(); err == nil {
		t.Fatal("expected error with no source selected")
	}

	sa = SourceArgs{Input: "capture.json", Remote: "https://api.example.com"}
	if err := sa.Validate(); err == nil {
		t.Fatal("expected error with two sources selected")
	}

	sa = SourceArgs{Remote: "https://api.example.com", Source: "src1"}
	if err := sa.Validate(); err == nil {
		t.Fatal("expected error for remote without org and auth-file")
	}

	sa = SourceArgs{Input: "capture.json"}
	if err := sa.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestSourceArgsAuthFile(t *testing.T) {
	authFile := path.Join(t.TempDir(), "token")
	if err := os.WriteFile(authFile, []byte("sekrit-token\n"), 0600); err != nil {
		t.Fatal(err)
	}
	sa := SourceArgs{
		Remote:   "https://api.example.com",
		Org:      "org1",
		Source:   "src1",
		AuthFile: authFile,
	}
	if err := sa.Validate(); err != nil {
		t.Fatal(err)
	}
	if sa.Token != "sekrit-token" {
		t.Fatalf("token %q", sa.Token)
	}
	if sa.RemoteURL == nil || sa.RemoteURL.Host != "api.example.com" {
		t.Fatalf("url %v", sa.RemoteURL)
	}
}

func TestSourceArgsMakeFileSource(t *testing.T) {
	capture := path.Join(t.TempDir(), "capture.json")
	if err := os.WriteFile(capture, []byte("line\n"), 0600); err != nil {
		t.Fatal(err)
	}
	sa := SourceArgs{Input: capture}
	if err := sa.Validate(); err != nil {
		t.Fatal(err)
	}
	src, id, remote, err := sa.MakeSource()
	if err != nil {
		t.Fatal(err)
	}
	if src == nil || id != capture || remote {
		t.Fatalf("src %v id %q remote %v", src, id, remote)
	}
}
