package common

import (
	"fmt"
	"io"
)

// Invoke thunk repeatedly, protecting it against panics, so that a bad input record or a bug in a
// worker does not take down the process.  Panic messages are printed to `log`.  The outer loop is
// not free, so long-lived workers should also loop internally.

func Forever(thunk func(), log io.Writer) {
	guarded := func() {
		defer func() {
			if msg := recover(); msg != nil {
				fmt.Fprintln(log, msg)
			}
		}()
		thunk()
	}
	for {
		guarded()
	}
}
