package main

import (
	"os"

	"github.com/angelospk/subdl/cmd/cli/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
