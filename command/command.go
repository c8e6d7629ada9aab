// Shared machinery for the command line verbs.

package command

import (
	"flag"
)

// A Command is the implementation of a verb.  Add registers its options on the verb's own flag
// set, Validate checks and canonicalizes them after parsing (folding in config-file defaults),
// and Run does the work.

type Command interface {
	Add(fs *flag.FlagSet)
	Validate() error
	Run() error
}
