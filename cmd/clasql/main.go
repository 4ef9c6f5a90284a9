// Command clasql frames text-to-SQL as multi-label classification over a
// database schema.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/clasql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
