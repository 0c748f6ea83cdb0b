// Command legacyid provisions and inspects block-allocated sequences and
// allocates identifiers from them.
package main

import (
	"os"

	"github.com/roach88/legacyid/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
