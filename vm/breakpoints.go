package vm

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Breakpoint is one entry in the debug controller's breakpoint table. An
// empty Source matches any body.
type Breakpoint struct {
	ID       int
	Source   string
	Line     int
	Enabled  bool
	HitCount int

	normalized string
}

// Summary returns a short description of the breakpoint.
func (bp *Breakpoint) Summary() string {
	if bp.Source == "" {
		return fmt.Sprintf("#%d line %d", bp.ID, bp.Line)
	}
	return fmt.Sprintf("#%d %s:%d", bp.ID, bp.Source, bp.Line)
}

// normalizePath puts a source path into canonical comparable form:
// cleaned, and case-insensitive with forward slashes on Windows-like
// hosts.
func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	p := filepath.Clean(path)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	}
	return p
}

// breakpointTable holds breakpoints indexed by line. Mutation happens on
// the adapter thread under the controller's mutex.
type breakpointTable struct {
	nextID int
	byLine map[int][]*Breakpoint
}

func newBreakpointTable() *breakpointTable {
	return &breakpointTable{nextID: 1, byLine: map[int][]*Breakpoint{}}
}

func (t *breakpointTable) add(source string, line int) (*Breakpoint, error) {
	if line <= 0 {
		return nil, fmt.Errorf("invalid breakpoint line %d", line)
	}
	bp := &Breakpoint{
		ID:         t.nextID,
		Source:     source,
		Line:       line,
		Enabled:    true,
		normalized: normalizePath(source),
	}
	t.nextID++
	t.byLine[line] = append(t.byLine[line], bp)
	return bp, nil
}

func (t *breakpointTable) remove(id int) bool {
	for line, bps := range t.byLine {
		for i, bp := range bps {
			if bp.ID == id {
				t.byLine[line] = append(bps[:i], bps[i+1:]...)
				if len(t.byLine[line]) == 0 {
					delete(t.byLine, line)
				}
				return true
			}
		}
	}
	return false
}

// replaceForSource removes every breakpoint for the source and installs
// the given lines, matching setBreakpoints semantics of debug adapters.
func (t *breakpointTable) replaceForSource(source string, lines []int) []*Breakpoint {
	norm := normalizePath(source)
	for line, bps := range t.byLine {
		kept := bps[:0]
		for _, bp := range bps {
			if bp.normalized != norm {
				kept = append(kept, bp)
			}
		}
		if len(kept) == 0 {
			delete(t.byLine, line)
		} else {
			t.byLine[line] = kept
		}
	}
	result := make([]*Breakpoint, 0, len(lines))
	for _, line := range lines {
		if bp, err := t.add(source, line); err == nil {
			result = append(result, bp)
		}
	}
	return result
}

// match returns the first enabled breakpoint for the line whose source
// matches, counting the hit.
func (t *breakpointTable) match(source string, line int) *Breakpoint {
	bps := t.byLine[line]
	if len(bps) == 0 {
		return nil
	}
	norm := normalizePath(source)
	for _, bp := range bps {
		if !bp.Enabled {
			continue
		}
		if bp.normalized == "" || bp.normalized == norm {
			bp.HitCount++
			return bp
		}
	}
	return nil
}

func (t *breakpointTable) list() []*Breakpoint {
	var out []*Breakpoint
	for _, bps := range t.byLine {
		out = append(out, bps...)
	}
	return out
}
