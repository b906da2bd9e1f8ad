package git

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// edit replaces base[lo:hi] with lines.
type edit struct {
	lo, hi int
	lines  []string
}

func sideEdits(base, side []string) []edit {
	var edits []edit
	for _, op := range difflib.NewMatcher(base, side).GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		edits = append(edits, edit{lo: op.I1, hi: op.I2, lines: side[op.J1:op.J2]})
	}
	return edits
}

// threeWayMergeLines reconciles two divergent revisions of a file against
// their common ancestor. Regions changed on only one side take that side's
// lines; regions changed identically on both collapse; overlapping or
// touching divergent regions become a conflict chunk with git-style
// markers. Returns the merged lines and whether any chunk conflicted.
func threeWayMergeLines(base, ours, theirs []string, oursLabel, theirsLabel string) ([]string, bool) {
	oursEdits := sideEdits(base, ours)
	theirsEdits := sideEdits(base, theirs)

	var merged []string
	conflicted := false
	basePos := 0
	i, j := 0, 0
	for i < len(oursEdits) || j < len(theirsEdits) {
		// Next region starts at the earliest pending edit.
		lo := -1
		if i < len(oursEdits) {
			lo = oursEdits[i].lo
		}
		if j < len(theirsEdits) && (lo < 0 || theirsEdits[j].lo < lo) {
			lo = theirsEdits[j].lo
		}
		hi := lo

		// Absorb edits from both sides while they overlap or touch the
		// region; touching counts because there is no stable line to
		// anchor the chunks apart.
		var regionOurs, regionTheirs []edit
		for {
			grew := false
			for i < len(oursEdits) && oursEdits[i].lo <= hi {
				regionOurs = append(regionOurs, oursEdits[i])
				hi = max(hi, oursEdits[i].hi)
				i++
				grew = true
			}
			for j < len(theirsEdits) && theirsEdits[j].lo <= hi {
				regionTheirs = append(regionTheirs, theirsEdits[j])
				hi = max(hi, theirsEdits[j].hi)
				j++
				grew = true
			}
			if !grew {
				break
			}
		}

		merged = append(merged, base[basePos:lo]...)
		basePos = hi

		oursRegion := applyEdits(base, lo, hi, regionOurs)
		theirsRegion := applyEdits(base, lo, hi, regionTheirs)
		switch {
		case len(regionTheirs) == 0:
			merged = append(merged, oursRegion...)
		case len(regionOurs) == 0:
			merged = append(merged, theirsRegion...)
		case slices.Equal(oursRegion, theirsRegion):
			merged = append(merged, oursRegion...)
		default:
			conflicted = true
			merged = append(merged, "<<<<<<< "+oursLabel)
			merged = append(merged, oursRegion...)
			merged = append(merged, "=======")
			merged = append(merged, theirsRegion...)
			merged = append(merged, ">>>>>>> "+theirsLabel)
		}
	}
	merged = append(merged, base[basePos:]...)
	return merged, conflicted
}

// applyEdits rewrites base[lo:hi] with one side's edits. The edits are
// sorted, non-overlapping and contained in [lo, hi).
func applyEdits(base []string, lo, hi int, edits []edit) []string {
	var out []string
	pos := lo
	for _, e := range edits {
		out = append(out, base[pos:e.lo]...)
		out = append(out, e.lines...)
		pos = e.hi
	}
	out = append(out, base[pos:hi]...)
	return out
}

// splitLines splits file content for line merging, without terminators. A
// trailing newline does not produce a phantom empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
