package cluster

import (
	"strconv"
	"strings"
)

var newickSanitizer = strings.NewReplacer(
	" ", "_", "\t", "_", "(", "_", ")", "_",
	"[", "_", "]", "_", ":", "_", ";", "_",
	",", "_", "'", "_", "\"", "_",
)

// Newick serializes a tree to the standard parenthetical notation.
// Characters the format reserves are replaced in names. The root carries
// no branch length.
func Newick(root *Node) string {
	var b strings.Builder
	writeNode(&b, root, true)
	b.WriteByte(';')
	return b.String()
}

func writeNode(b *strings.Builder, nd *Node, isRoot bool) {
	if nd.IsLeaf() {
		b.WriteString(newickSanitizer.Replace(nd.Name))
	} else {
		b.WriteByte('(')
		for i, child := range nd.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNode(b, child, false)
		}
		b.WriteByte(')')
	}
	if !isRoot {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(nd.Length, 'g', -1, 64))
	}
}
