// The `export` verb: fetch a window of records and write them out as NDJSON.
//
// The load path is the same one replay uses, so exports are deduplicated and versioned exactly
// like a live session would see the data.  Snapshots travel through the batch rather than the
// store, so they are appended to the output after the stored kinds.

package export

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"replaytop/command"
	"replaytop/common"
	"replaytop/loader"
	"replaytop/repr"
	"replaytop/sink"
	"replaytop/status"
	"replaytop/store"
)

type ExportCommand struct {
	command.VerboseArgs
	command.SourceArgs
	command.TimeArgs
	Output   string
	S3Bucket string
	S3Prefix string
}

func (ec *ExportCommand) Add(fs *flag.FlagSet) {
	ec.VerboseArgs.Add(fs)
	ec.SourceArgs.Add(fs)
	ec.TimeArgs.Add(fs)
	fs.StringVar(&ec.Output, "output", "",
		"Write the export to `filename`, \"-\" for stdout [default: output.file in ~/.replaytop]")
	fs.StringVar(&ec.S3Bucket, "s3-bucket", "",
		"Write the export to this S3 `bucket` [default: output.s3-bucket in ~/.replaytop]")
	fs.StringVar(&ec.S3Prefix, "s3-prefix", "", "Key `prefix` for S3 objects")
}

func (ec *ExportCommand) Validate() error {
	err := errors.Join(
		ec.VerboseArgs.Validate(),
		ec.SourceArgs.Validate(),
		ec.TimeArgs.Validate(),
	)
	common.ApplyDefault(&ec.Output, common.OutputFile)
	common.ApplyDefault(&ec.S3Bucket, common.OutputS3Bucket)
	if (ec.Output == "") == (ec.S3Bucket == "") {
		err = errors.Join(err, errors.New("Exactly one of -output and -s3-bucket must be selected"))
	}
	return err
}

func (ec *ExportCommand) Run() error {
	if ec.Verbose {
		common.Log.LowerLevelTo(status.LogLevelInfo)
	}
	src, sourceID, _, err := ec.MakeSource()
	if err != nil {
		return err
	}
	st := store.New()
	ld := loader.New(st, src, sourceID, ec.Cluster)

	start, end := ec.Window()
	snaps, err := ld.Load(context.Background(), start, end)
	if err != nil {
		return fmt.Errorf("Load failed: %w", err)
	}

	sk, err := ec.makeSink()
	if err != nil {
		return err
	}
	if err := st.Export(appendSnapshots(sk, snapsToLines(snaps))); err != nil {
		return err
	}
	common.Log.Infof("Exported window [%s, %s]", common.FormatEpoch(start), common.FormatEpoch(end))
	return nil
}

func (ec *ExportCommand) makeSink() (sink.Sink, error) {
	switch {
	case ec.Output == "-":
		return sink.NewFileSink(os.Stdout), nil
	case ec.Output != "":
		f, err := os.Create(ec.Output)
		if err != nil {
			return nil, fmt.Errorf("Cannot create output file: %w", err)
		}
		// The process exits after the export; the file is flushed by the sink's writer and
		// closed on exit.
		return sink.NewFileSink(f), nil
	default:
		return sink.NewS3Sink(sink.NewEnvS3Client(), ec.S3Bucket, ec.S3Prefix), nil
	}
}

func snapsToLines(snaps []*repr.Snapshot) [][]byte {
	lines := make([][]byte, 0, len(snaps))
	for _, snap := range snaps {
		lines = append(lines, snap.Raw)
	}
	return lines
}

// The store exports the stored kinds; tack the batch's snapshot lines onto the same write.

type snapshotAppender struct {
	inner sink.Sink
	extra [][]byte
}

func appendSnapshots(inner sink.Sink, extra [][]byte) sink.Sink {
	return &snapshotAppender{inner: inner, extra: extra}
}

func (sa *snapshotAppender) Write(lines [][]byte) error {
	return sa.inner.Write(append(lines, sa.extra...))
}
