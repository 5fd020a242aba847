// cratectl is the operator CLI for oxygencrate. It imports files through
// the same token and copy protocol the shell uses, opens the desktop
// picker, and reads the import ledger.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
