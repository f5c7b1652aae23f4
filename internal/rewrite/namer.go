package rewrite

import (
	"go/ast"
	"strconv"
)

// Namer hands out identifiers that do not collide with any name already
// used in a file.
type Namer struct {
	used map[string]struct{}
	next int
}

func NewNamer(f *ast.File) *Namer {
	n := &Namer{used: make(map[string]struct{}), next: 1}
	if f == nil {
		return n
	}
	ast.Inspect(f, func(node ast.Node) bool {
		if ident, ok := node.(*ast.Ident); ok {
			n.used[ident.Name] = struct{}{}
		}
		return true
	})
	return n
}

// Reserve returns one fresh name per base, all sharing the same numeric
// suffix so that names belonging to one construct stay recognisable.
func (n *Namer) Reserve(bases ...string) []string {
	for {
		suffix := strconv.Itoa(n.next)
		n.next++

		names := make([]string, len(bases))
		free := true
		for i, base := range bases {
			names[i] = base + suffix
			if _, taken := n.used[names[i]]; taken {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		for _, name := range names {
			n.used[name] = struct{}{}
		}
		return names
	}
}
