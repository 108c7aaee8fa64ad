package index

import "sort"

// prefixTree is a rune trie used for name and require-path completion.
// Lookups return values in lexicographic key order.
type prefixTree[T any] struct {
	root *prefixTreeNode[T]
}

type prefixTreeNode[T any] struct {
	children map[rune]*prefixTreeNode[T]
	value    T
	leaf     bool
}

func newPrefixTree[T any]() *prefixTree[T] {
	return &prefixTree[T]{root: &prefixTreeNode[T]{}}
}

func (t *prefixTree[T]) insert(key string, value T) {
	node := t.root
	for _, r := range key {
		if node.children == nil {
			node.children = map[rune]*prefixTreeNode[T]{}
		}
		child := node.children[r]
		if child == nil {
			child = &prefixTreeNode[T]{}
			node.children[r] = child
		}
		node = child
	}
	node.value = value
	node.leaf = true
}

func (t *prefixTree[T]) delete(key string) {
	type step struct {
		node *prefixTreeNode[T]
		r    rune
	}
	var path []step
	node := t.root
	for _, r := range key {
		child := node.children[r]
		if child == nil {
			return
		}
		path = append(path, step{node, r})
		node = child
	}
	if !node.leaf {
		return
	}
	var zero T
	node.leaf = false
	node.value = zero

	// Prune now-empty branches bottom-up.
	for i := len(path) - 1; i >= 0; i-- {
		child := path[i].node.children[path[i].r]
		if child.leaf || len(child.children) > 0 {
			break
		}
		delete(path[i].node.children, path[i].r)
	}
}

// search returns every value stored under keys starting with prefix.
func (t *prefixTree[T]) search(prefix string) []T {
	node := t.root
	for _, r := range prefix {
		node = node.children[r]
		if node == nil {
			return nil
		}
	}
	var out []T
	collect(node, &out)
	return out
}

func collect[T any](node *prefixTreeNode[T], out *[]T) {
	if node.leaf {
		*out = append(*out, node.value)
	}
	runes := make([]rune, 0, len(node.children))
	for r := range node.children {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	for _, r := range runes {
		collect(node.children[r], out)
	}
}
