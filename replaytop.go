// `replaytop` -- replay recorded machine and cluster activity as a top-style session
//
// Run `replaytop help` for brief help.

package main

import (
	"flag"
	"fmt"
	"os"

	"replaytop/command"
	"replaytop/export"
	"replaytop/replay"
	"replaytop/tail"
)

// v0.1.0 - replay, export and tail over file, API and archive sources

const ReplaytopVersion = "0.1.0"

func main() {
	cmd := commandLine()
	if err := cmd.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commandLine() command.Command {
	out := flag.CommandLine.Output()

	if len(os.Args) < 2 {
		fmt.Fprintf(out, "Required operation missing, try `replaytop help`\n")
		os.Exit(2)
	}

	var cmd command.Command
	verb := os.Args[1]
	switch verb {
	case "help", "-h":
		fmt.Fprintf(out, "Usage: %s command [options]\n", os.Args[0])
		fmt.Fprintf(out, "Commands:\n")
		fmt.Fprintf(out, "  replay  - replay a window of recorded activity\n")
		fmt.Fprintf(out, "  export  - fetch a window of records and write NDJSON\n")
		fmt.Fprintf(out, "  tail    - follow live record streams from a broker\n")
		fmt.Fprintf(out, "  version - print information about the program\n")
		fmt.Fprintf(out, "  help    - print this message\n")
		fmt.Fprintf(out, "Each command accepts -h to further explain options.\n")
		os.Exit(0)
	case "replay":
		cmd = new(replay.ReplayCommand)
	case "export":
		cmd = new(export.ExportCommand)
	case "tail":
		cmd = new(tail.TailCommand)
	case "version":
		fmt.Printf("replaytop version(%s)\n", ReplaytopVersion)
		os.Exit(0)
	default:
		fmt.Fprintf(out, "Unknown operation %q, try `replaytop help`\n", verb)
		os.Exit(2)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cmd.Add(fs)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s %s [options]\nOptions:\n", os.Args[0], verb)
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[2:])

	if err := cmd.Validate(); err != nil {
		fmt.Fprintln(out, err.Error())
		os.Exit(2)
	}
	return cmd
}
