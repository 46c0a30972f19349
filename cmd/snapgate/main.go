// Command snapgate fetches market snapshots through a replayable cache and
// classifies them through the readiness gates.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
