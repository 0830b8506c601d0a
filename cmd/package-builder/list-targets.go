package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mp4-to-gif-converter/packager/pkg/packaging"
)

func runListTargets(_args []string) error {
	outFH := os.Stdout

	fmt.Fprintf(outFH, "Packaging Targets\n")
	fmt.Fprintf(outFH, "A common target: `windows-iss`\n")
	fmt.Fprintf(outFH, "\n")

	w := tabwriter.NewWriter(outFH, 0, 4, 4, ' ', 0)
	fmt.Fprintf(w, "TARGET\tDESCRIPTOR\tARTIFACT\n")
	for _, t := range packaging.Targets() {
		t := t
		fmt.Fprintf(w, "%s\t.%s\t.%s\n", t.String(), t.DescriptorExtension(), t.PkgExtension())
	}
	w.Flush()

	return nil
}
