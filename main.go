// Command inventory serves a tech inventory catalog over HTTP from a JSON
// document on disk, and bundles the maintenance and demo commands that go
// with it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "inventory: %v\n", err)
		os.Exit(1)
	}
}
