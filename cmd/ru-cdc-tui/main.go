// Command ru-cdc-tui is a standalone terminal dashboard that watches a
// running ru-cdc agent's admin HTTP/SSE surface and renders its
// dispatched Canal records live.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ipconfiger/ru-cdc/internal/tui"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("ru-cdc-tui", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "ru-cdc-tui — watch a ru-cdc agent's live change-event feed\n\nUsage:\n  ru-cdc-tui [flags] <admin-addr>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("ru-cdc-tui %s\n", version)
		return
	}

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	if err := watch(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "ru-cdc-tui: %v\n", err)
		os.Exit(1)
	}
}

func watch(addr string) error {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	p := tea.NewProgram(tui.New(addr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
