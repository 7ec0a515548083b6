// Command stagehand runs, validates, serves and views scene command
// scripts.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
