// Argument structs shared by the verbs.  Each struct contributes its flags with Add and checks
// them with Validate; a verb's command embeds the structs it needs.  Defaults not given on the
// command line are taken from ~/.replaytop where that makes sense.

package command

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"replaytop/common"
	"replaytop/source"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// You wouldn't think -v would be so complicated.

type VerboseArgs struct {
	Verbose bool
}

func (va *VerboseArgs) Add(fs *flag.FlagSet) {
	fs.BoolVar(&va.Verbose, "v", false, "Print verbose diagnostics to stderr")
	fs.BoolVar(&va.Verbose, "verbose", false, "Print verbose diagnostics to stderr")
}

func (va *VerboseArgs) Validate() error {
	return nil
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Where the records come from: a capture file, the backend API, or an archive database.

type SourceArgs struct {
	Input    string
	Remote   string
	AuthFile string
	Org      string
	Source   string
	Database string
	Cluster  bool

	// Filled in by Validate.
	RemoteURL *url.URL
	Token     string
}

func (sa *SourceArgs) Add(fs *flag.FlagSet) {
	fs.StringVar(&sa.Input, "input", "",
		"Replay from this capture `filename` instead of a remote source")
	fs.StringVar(&sa.Remote, "remote", "",
		"Select a remote backend API by `url` [default: data-source.remote in ~/.replaytop]")
	fs.StringVar(&sa.AuthFile, "auth-file", "",
		"Read the API token from `filename` [default: data-source.auth-file in ~/.replaytop]")
	fs.StringVar(&sa.Org, "org", "",
		"Organization `uid` for the remote backend")
	fs.StringVar(&sa.Source, "source", "",
		"Source machine `uid` to replay")
	fs.StringVar(&sa.Database, "db", "",
		"Replay from an archive database at this connection `uri`")
	fs.BoolVar(&sa.Cluster, "cluster", false,
		"The source is a cluster: discover its machines and fan out")
}

func (sa *SourceArgs) Validate() error {
	common.ApplyDefault(&sa.Remote, common.DataSourceRemote)
	common.ApplyDefault(&sa.AuthFile, common.DataSourceAuthFile)
	common.ApplyDefault(&sa.Org, common.DataSourceOrg)
	common.ApplyDefault(&sa.Source, common.DataSourceSource)

	selected := 0
	for _, s := range []string{sa.Input, sa.Remote, sa.Database} {
		if s != "" {
			selected++
		}
	}
	var e1, e2, e3, e4 error
	if selected != 1 {
		e1 = errors.New("Exactly one of -input, -remote and -db must be selected")
	}
	if sa.Remote != "" {
		var err error
		sa.RemoteURL, err = url.Parse(sa.Remote)
		if err != nil {
			e2 = fmt.Errorf("Bad -remote url: %w", err)
		}
		if sa.Org == "" {
			e3 = errors.New("-remote requires -org")
		}
		if sa.AuthFile != "" {
			token, err := os.ReadFile(sa.AuthFile)
			if err != nil {
				e4 = fmt.Errorf("Cannot read -auth-file: %w", err)
			} else {
				sa.Token = strings.TrimSpace(string(token))
			}
		} else {
			e4 = errors.New("-remote requires -auth-file")
		}
	}
	if (sa.Remote != "" || sa.Database != "") && sa.Source == "" && !sa.Cluster {
		e1 = errors.Join(e1, errors.New("A non-cluster replay requires -source"))
	}
	return errors.Join(e1, e2, e3, e4)
}

// MakeSource builds the data source the arguments describe.  The returned id is the configured
// source uid, or the file name for file sources.

func (sa *SourceArgs) MakeSource() (src source.DataSource, sourceID string, remote bool, err error) {
	switch {
	case sa.Input != "":
		fs, err := source.ReadFileSource(sa.Input)
		if err != nil {
			return nil, "", false, err
		}
		return fs, fs.Name(), false, nil
	case sa.Database != "":
		ps, err := source.OpenPGSource(sa.Database)
		if err != nil {
			return nil, "", false, err
		}
		return ps, sa.Source, true, nil
	default:
		return source.NewHTTPSource(sa.RemoteURL, sa.Token, sa.Org), sa.Source, true, nil
	}
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// The replay window: a start time and a duration.

type TimeArgs struct {
	Time     string
	Duration string

	// Filled in by Validate.
	When        float64
	DurationSec int64
}

func (ta *TimeArgs) Add(fs *flag.FlagSet) {
	fs.StringVar(&ta.Time, "time", "",
		"Start the replay at `when`, YYYY-MM-DD, RFC3339, Nd, Nw or epoch seconds [default: 15m ago]")
	fs.StringVar(&ta.Duration, "duration", "",
		"Initial load window as `WwDdHhMm` [default: 5m]")
}

func (ta *TimeArgs) Validate() error {
	common.ApplyDefault(&ta.Time, common.DataSourceTime)
	common.ApplyDefault(&ta.Duration, common.DataSourceDuration)

	var e1, e2 error
	now := time.Now()
	if ta.Time == "" {
		ta.When = float64(now.Add(-15 * time.Minute).Unix())
	} else {
		ta.When, e1 = common.ParseWhen(now, ta.Time)
	}
	if ta.Duration == "" {
		ta.DurationSec = 5 * 60
	} else {
		ta.DurationSec, e2 = common.DurationToSeconds("-duration", ta.Duration)
		if e2 == nil && ta.DurationSec <= 0 {
			e2 = errors.New("-duration must be positive")
		}
	}
	return errors.Join(e1, e2)
}

func (ta *TimeArgs) Window() (start, end float64) {
	return ta.When, ta.When + float64(ta.DurationSec)
}
