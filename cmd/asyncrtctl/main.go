// Command asyncrtctl is a thin demonstration front-end for the asyncrt
// runtime: it accepts no inputs that affect core semantics, existing only
// to give the module a runnable entry point.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
