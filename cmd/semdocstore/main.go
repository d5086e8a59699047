// Command semdocstore runs the semantic document store's HTTP service.
package main

import (
	"os"

	"github.com/custodia-labs/semdocstore/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute())
}
