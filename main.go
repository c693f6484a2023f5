// The main package for the hotterms executable.
package main

import (
	"github.com/JakeFAU/hotterms/cmd"
)

func main() {
	cmd.Execute()
}
