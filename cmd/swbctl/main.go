// Command swbctl manages platform models and database schemas
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "swbctl:", err)
		os.Exit(1)
	}
}
