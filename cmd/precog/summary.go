package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"

	"github.com/blackcoderx/precog/pkg/executor"
)

// printSummary always writes the plain-text summary, and additionally
// renders a glamour Markdown summary when stdout is a terminal.
func printSummary(result *executor.Result) {
	fmt.Print(result.String())

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return
	}
	rendered, err := renderer.Render(result.Markdown())
	if err != nil {
		return
	}
	fmt.Print(rendered)
}
