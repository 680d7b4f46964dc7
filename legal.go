package swb

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// LegalText returns legal text to be included in human-readable output of the platform commands.
// It lists the modules compiled into the running binary.
func LegalText() string {
	var builder strings.Builder
	builder.WriteString(`
================================================================================
SWB Platform - Semantic Web Builder persistence node
================================================================================
`)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		builder.WriteString("build information unavailable\n")
		return builder.String()
	}

	fmt.Fprintf(&builder, "%s %s\n\nThis binary includes the following modules, see their respective licenses:\n\n", info.Main.Path, info.Main.Version)
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		fmt.Fprintf(&builder, "  %s %s\n", dep.Path, dep.Version)
	}
	return builder.String()
}
