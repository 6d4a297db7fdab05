package provider

import (
	"fmt"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

// patchDiff renders a unified diff of the raw bytes versus the currently
// patched bytes for every contiguous patched run, used by Description() to
// give a host a human-readable summary of pending edits before a Save,
// grounded on internal/util/util.go's UnifiedDiff helper in this
// codebase's lineage.
func (b *Base) patchDiff() string {
	b.mu.RLock()
	addrs := make([]uint64, 0, len(b.current))
	for a := range b.current {
		addrs = append(addrs, a)
	}
	b.mu.RUnlock()
	if len(addrs) == 0 {
		return ""
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	lo, hi := addrs[0], addrs[len(addrs)-1]+1
	span := hi - lo
	const maxSpan = 4096
	if span > maxSpan {
		span = maxSpan
		hi = lo + span
	}

	before := make([]byte, span)
	n, _ := b.raw.RawReadAt(lo, before)
	before = before[:n]

	after := append([]byte(nil), before...)
	b.mu.RLock()
	for i := range after {
		if v, ok := b.current[lo+uint64(i)]; ok {
			after[i] = v
		}
	}
	b.mu.RUnlock()

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(hexLines(before)),
		B:        difflib.SplitLines(hexLines(after)),
		FromFile: fmt.Sprintf("raw@0x%X", lo),
		ToFile:   fmt.Sprintf("patched@0x%X", lo),
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// hexLines renders one hex byte per line so difflib's line-oriented diff
// can highlight exactly which bytes within a patched run changed.
func hexLines(b []byte) string {
	out := make([]byte, 0, len(b)*3)
	for _, c := range b {
		out = append(out, []byte(fmt.Sprintf("%02X\n", c))...)
	}
	return string(out)
}
