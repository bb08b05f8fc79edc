// Command dlfs operates on a DatenLord namespace from the shell.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, newTheme().ErrorStyle.Render("error:"), err)
		os.Exit(1)
	}
}
