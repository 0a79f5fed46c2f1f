package cli

import (
	"os"

	"golang.org/x/term"
)

// ANSI escape sequences. Empty unless stdout is a terminal and NO_COLOR is unset.
var (
	ansiReset  string
	ansiBold   string
	ansiGreen  string
	ansiYellow string
	ansiRed    string
	ansiCyan   string
	ansiGray   string
)

func init() {
	if os.Getenv("NO_COLOR") != "" || !stdoutIsTTY() {
		return
	}
	ansiReset = "\033[0m"
	ansiBold = "\033[1m"
	ansiGreen = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed = "\033[31m"
	ansiCyan = "\033[36m"
	ansiGray = "\033[90m"
}

// stdoutIsTTY returns true when os.Stdout is connected to an interactive terminal.
func stdoutIsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
