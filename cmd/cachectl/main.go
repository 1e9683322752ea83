// Command cachectl inspects and maintains identity content stores on disk.
package main

import (
	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(newRootCommand().Execute())
}
