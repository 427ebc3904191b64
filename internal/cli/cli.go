// Package cli implements the interactive fibmap inspector.
//
// The command loop is separated from terminal handling so it can be tested
// with injected writers; Run wires it to a line editor.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/calvinalkan/fibmap/internal/keyset"
	"github.com/calvinalkan/fibmap/pkg/fibmap"
)

// Session holds the table under inspection and the output sink.
type Session struct {
	tbl *fibmap.Table
	out io.Writer
}

// NewSession returns a session over tbl writing to out.
func NewSession(tbl *fibmap.Table, out io.Writer) *Session {
	return &Session{tbl: tbl, out: out}
}

// Exec runs a single command line and reports whether the session should
// end. Unknown commands and bad arguments print a message; they never
// terminate the session.
func (s *Session) Exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "put":
		s.cmdPut(args)
	case "get":
		s.cmdGet(args)
	case "rm":
		s.cmdRemove(args)
	case "len":
		fmt.Fprintln(s.out, s.tbl.Len())
	case "stats":
		s.cmdStats()
	case "dump":
		s.tbl.DumpTo(s.out, len(args) > 0 && args[0] == "all")
	case "fill":
		s.cmdFill(args)
	case "fp":
		s.cmdFingerprint(args)
	case "help":
		s.printHelp()
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q, try help\n", cmd)
	}

	return false
}

func (s *Session) cmdPut(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "usage: put <key> <value>")

		return
	}

	key, err := parseKey(args[0])
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)

		return
	}

	value, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.out, "error: invalid value %q\n", args[1])

		return
	}

	e, exists := s.tbl.Put(key, value)
	if exists {
		fmt.Fprintf(s.out, "exists: key 0x%08x value %d (not updated)\n", e.Key, e.Value)

		return
	}

	fmt.Fprintf(s.out, "inserted: key 0x%08x value %d offset %d\n", e.Key, e.Value, e.Offset)
}

func (s *Session) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: get <key>")

		return
	}

	key, err := parseKey(args[0])
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)

		return
	}

	e, exists := s.tbl.Get(key)
	if !exists {
		fmt.Fprintf(s.out, "not found: key 0x%08x\n", key)

		return
	}

	fmt.Fprintf(s.out, "found: key 0x%08x value %d offset %d\n", e.Key, e.Value, e.Offset)
}

func (s *Session) cmdRemove(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: rm <key>")

		return
	}

	key, err := parseKey(args[0])
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)

		return
	}

	if !s.tbl.Remove(key) {
		fmt.Fprintf(s.out, "not found: key 0x%08x\n", key)

		return
	}

	fmt.Fprintf(s.out, "removed: key 0x%08x\n", key)
}

func (s *Session) cmdStats() {
	st := s.tbl.Stats()

	fmt.Fprintf(s.out, "count        %s\n", humanize.Comma(int64(st.Count)))
	fmt.Fprintf(s.out, "size         %s (2^%d)\n", humanize.Comma(int64(st.Size)), st.Log2Size)
	fmt.Fprintf(s.out, "max offset   %d (limit %d)\n", st.MaxOffset, st.OffsetLimit)
	fmt.Fprintf(s.out, "grow at      %s\n", humanize.Comma(int64(st.GrowCount)))
	fmt.Fprintf(s.out, "shrink at    %s\n", humanize.Comma(int64(st.ShrinkCount)))

	if st.Migrating {
		fmt.Fprintf(s.out, "migrating    dir %+d, %s slots left (old size 2^%d)\n",
			st.MigrateDir, humanize.Comma(int64(st.ToMigrate)), st.SecondaryLog2Size)
	} else {
		fmt.Fprintln(s.out, "migrating    no")
	}
}

func (s *Session) cmdFill(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(s.out, "usage: fill <n> [seed]")

		return
	}

	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(s.out, "error: invalid count %q\n", args[0])

		return
	}

	seed := int64(1)

	if len(args) == 2 {
		seed, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Fprintf(s.out, "error: invalid seed %q\n", args[1])

			return
		}
	}

	inserted, existed := 0, 0

	for _, k := range keyset.Shuffled(uint32(n), seed) {
		if _, exists := s.tbl.Put(k, int(k)); exists {
			existed++
		} else {
			inserted++
		}
	}

	fmt.Fprintf(s.out, "filled: %d inserted, %d already present\n", inserted, existed)
}

func (s *Session) cmdFingerprint(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "usage: fp <string>")

		return
	}

	str := strings.Join(args, " ")
	fp := keyset.Fingerprint(str)

	fmt.Fprintf(s.out, "fingerprint(%q) = 0x%08x (%d)\n", str, fp, fp)
}

func (s *Session) printHelp() {
	fmt.Fprint(s.out, `commands:
  put <key> <value>   insert a key (no update if present)
  get <key>           look up a key
  rm <key>            remove a key
  len                 live key count
  stats               table sizing and migration state
  dump [all]          list live slots, "all" includes empties
  fill <n> [seed]     insert n shuffled sequential keys
  fp <string>         fingerprint a string to a 32-bit key
  help                this text
  quit                leave
keys are decimal or 0x-prefixed hex
`)
}

func parseKey(s string) (uint32, error) {
	k, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q (decimal or 0x hex)", s)
	}

	return uint32(k), nil
}
