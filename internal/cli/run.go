package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/fibmap/pkg/fibmap"
)

// Run starts an interactive session over a fresh default table and returns
// a process exit code. Input comes from the terminal via the line editor;
// all command output goes to out.
func Run(out io.Writer) int {
	tbl := fibmap.NewDefault()
	defer tbl.Free()

	sess := NewSession(tbl, out)

	editor := liner.NewLiner()
	defer editor.Close()

	editor.SetCtrlCAborts(true)

	fmt.Fprintln(out, "fibmap inspector, type help for commands")

	for {
		input, err := editor.Prompt("fibmap> ")
		if err != nil {
			// Ctrl-C and EOF both end the session cleanly.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return 0
			}

			fmt.Fprintln(out, "error:", err)

			return 1
		}

		if strings.TrimSpace(input) == "" {
			continue
		}

		editor.AppendHistory(input)

		if quit := sess.Exec(input); quit {
			return 0
		}
	}
}
