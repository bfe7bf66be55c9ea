// Command stockbackup serves the request workflow API and provisions
// tenant workflow definitions.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
