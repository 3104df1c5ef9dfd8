// Package ptree implements a persistent (immutable, path-copying) AVL tree.
//
// Every update returns a new Tree. Only the nodes on the path from the
// changed position to the root are allocated; all other subtrees are shared
// by reference with the previous version, which stays valid and unchanged.
// Node handles are exposed so callers can observe that sharing.
package ptree

import (
	"errors"
	"iter"
)

// ErrUnsorted is returned by Build when keys are not strictly ascending.
var ErrUnsorted = errors.New("ptree: keys not strictly ascending")

// Node is an immutable tree node.
type Node[K, V any] struct {
	key    K
	value  V
	left   *Node[K, V]
	right  *Node[K, V]
	height int32
	size   int
}

// Key returns the node key.
func (n *Node[K, V]) Key() K { return n.key }

// Value returns the node value.
func (n *Node[K, V]) Value() V { return n.value }

// Left returns the left child, or nil.
func (n *Node[K, V]) Left() *Node[K, V] { return n.left }

// Right returns the right child, or nil.
func (n *Node[K, V]) Right() *Node[K, V] { return n.right }

// Height returns the height of the subtree rooted at n.
func (n *Node[K, V]) Height() int { return int(n.height) }

// Tree is an immutable ordered map.
type Tree[K, V any] struct {
	root *Node[K, V]
	cmp  func(a, b K) int
}

// New returns an empty tree ordered by cmp.
func New[K, V any](cmp func(a, b K) int) *Tree[K, V] {
	return &Tree[K, V]{cmp: cmp}
}

// Build creates a perfectly balanced tree from strictly ascending pairs in
// linear time.
func Build[K, V any](cmp func(a, b K) int, pairs iter.Seq2[K, V]) (*Tree[K, V], error) {
	var keys []K
	var values []V
	for k, v := range pairs {
		if n := len(keys); n > 0 && cmp(keys[n-1], k) >= 0 {
			return nil, ErrUnsorted
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	return &Tree[K, V]{root: buildRange(keys, values), cmp: cmp}, nil
}

func buildRange[K, V any](keys []K, values []V) *Node[K, V] {
	if len(keys) == 0 {
		return nil
	}
	mid := len(keys) / 2
	return mk(keys[mid], values[mid], buildRange(keys[:mid], values[:mid]), buildRange(keys[mid+1:], values[mid+1:]))
}

// Root returns the root node handle, or nil for an empty tree.
func (t *Tree[K, V]) Root() *Node[K, V] {
	return t.root
}

// Len returns the number of keys.
func (t *Tree[K, V]) Len() int {
	return size(t.root)
}

// Get returns the value stored under k.
func (t *Tree[K, V]) Get(k K) (V, bool) {
	n := t.root
	for n != nil {
		c := t.cmp(k, n.key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	var zero V
	return zero, false
}

// Has reports whether k is present.
func (t *Tree[K, V]) Has(k K) bool {
	_, ok := t.Get(k)
	return ok
}

// Put returns a tree with k set to v.
func (t *Tree[K, V]) Put(k K, v V) *Tree[K, V] {
	return &Tree[K, V]{root: t.insert(t.root, k, v), cmp: t.cmp}
}

func (t *Tree[K, V]) insert(n *Node[K, V], k K, v V) *Node[K, V] {
	if n == nil {
		return mk(k, v, nil, nil)
	}
	c := t.cmp(k, n.key)
	switch {
	case c < 0:
		return balance(n.key, n.value, t.insert(n.left, k, v), n.right)
	case c > 0:
		return balance(n.key, n.value, n.left, t.insert(n.right, k, v))
	default:
		return mk(k, v, n.left, n.right)
	}
}

// Delete returns a tree without k. The second result reports whether k was
// present; if not, the receiver itself is returned.
func (t *Tree[K, V]) Delete(k K) (*Tree[K, V], bool) {
	root, ok := t.remove(t.root, k)
	if !ok {
		return t, false
	}
	return &Tree[K, V]{root: root, cmp: t.cmp}, true
}

func (t *Tree[K, V]) remove(n *Node[K, V], k K) (*Node[K, V], bool) {
	if n == nil {
		return nil, false
	}
	c := t.cmp(k, n.key)
	switch {
	case c < 0:
		l, ok := t.remove(n.left, k)
		if !ok {
			return n, false
		}
		return balance(n.key, n.value, l, n.right), true
	case c > 0:
		r, ok := t.remove(n.right, k)
		if !ok {
			return n, false
		}
		return balance(n.key, n.value, n.left, r), true
	}

	switch {
	case n.left == nil:
		return n.right, true
	case n.right == nil:
		return n.left, true
	}
	succ := n.right
	for succ.left != nil {
		succ = succ.left
	}
	return balance(succ.key, succ.value, n.left, removeMin(n.right)), true
}

func removeMin[K, V any](n *Node[K, V]) *Node[K, V] {
	if n.left == nil {
		return n.right
	}
	return balance(n.key, n.value, removeMin(n.left), n.right)
}

// Min returns the smallest key and its value.
func (t *Tree[K, V]) Min() (K, V, bool) {
	n := t.root
	if n == nil {
		var k K
		var v V
		return k, v, false
	}
	for n.left != nil {
		n = n.left
	}
	return n.key, n.value, true
}

// Max returns the largest key and its value.
func (t *Tree[K, V]) Max() (K, V, bool) {
	n := t.root
	if n == nil {
		var k K
		var v V
		return k, v, false
	}
	for n.right != nil {
		n = n.right
	}
	return n.key, n.value, true
}

// All iterates every pair in ascending key order. The sequence may be
// ranged over any number of times.
func (t *Tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var stack []*Node[K, V]
		for n := t.root; n != nil; n = n.left {
			stack = append(stack, n)
		}
		walk(stack, yield)
	}
}

// Ascend iterates pairs with keys >= from in ascending order.
func (t *Tree[K, V]) Ascend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var stack []*Node[K, V]
		n := t.root
		for n != nil {
			if t.cmp(n.key, from) >= 0 {
				stack = append(stack, n)
				n = n.left
			} else {
				n = n.right
			}
		}
		walk(stack, yield)
	}
}

func walk[K, V any](stack []*Node[K, V], yield func(K, V) bool) {
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !yield(n.key, n.value) {
			return
		}
		for c := n.right; c != nil; c = c.left {
			stack = append(stack, c)
		}
	}
}

// Nodes iterates every node handle in pre-order.
func (t *Tree[K, V]) Nodes() iter.Seq[*Node[K, V]] {
	return func(yield func(*Node[K, V]) bool) {
		var stack []*Node[K, V]
		if t.root != nil {
			stack = append(stack, t.root)
		}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n) {
				return
			}
			if n.right != nil {
				stack = append(stack, n.right)
			}
			if n.left != nil {
				stack = append(stack, n.left)
			}
		}
	}
}

func height[K, V any](n *Node[K, V]) int32 {
	if n == nil {
		return 0
	}
	return n.height
}

func size[K, V any](n *Node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.size
}

func mk[K, V any](k K, v V, l, r *Node[K, V]) *Node[K, V] {
	return &Node[K, V]{
		key:    k,
		value:  v,
		left:   l,
		right:  r,
		height: 1 + max(height(l), height(r)),
		size:   1 + size(l) + size(r),
	}
}

// balance builds a node from k, v, l and r, rotating when the subtree
// heights differ by more than one. Only new nodes are created; l and r are
// never modified.
func balance[K, V any](k K, v V, l, r *Node[K, V]) *Node[K, V] {
	hl, hr := height(l), height(r)
	switch {
	case hl > hr+1:
		if height(l.left) >= height(l.right) {
			return mk(l.key, l.value, l.left, mk(k, v, l.right, r))
		}
		lr := l.right
		return mk(lr.key, lr.value, mk(l.key, l.value, l.left, lr.left), mk(k, v, lr.right, r))
	case hr > hl+1:
		if height(r.right) >= height(r.left) {
			return mk(r.key, r.value, mk(k, v, l, r.left), r.right)
		}
		rl := r.left
		return mk(rl.key, rl.value, mk(k, v, l, rl.left), mk(r.key, r.value, rl.right, r.right))
	default:
		return mk(k, v, l, r)
	}
}
