// Command sqlgen compiles JSON query documents into parameterized SQL,
// checks user filters against a policy and encodes or decodes pagination
// cursors.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
