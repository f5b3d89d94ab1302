// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Package merkle implements a binary Merkle accumulator with inclusion and
// non-inclusion proofs.
//
// Leaves and interior nodes are domain separated as in RFC 6962 (0x00 and
// 0x01 prefixes).  A level with an odd number of nodes pairs its last node
// with itself.  Non-inclusion proofs require a tree built with NewSorted.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"sort"

	"github.com/emmansun/gmsm/sm3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

var (
	// ErrEmpty is the error returned when a proof is requested from an
	// empty tree.
	ErrEmpty = errors.New("merkle: tree is empty")

	// ErrNotFound is the error returned when the leaf is not in the tree.
	ErrNotFound = errors.New("merkle: leaf not found")

	// ErrExists is the error returned when a non-inclusion proof is
	// requested for a leaf that is in the tree.
	ErrExists = errors.New("merkle: leaf exists")

	// ErrUnsorted is the error returned when a non-inclusion proof is
	// requested from a tree that was not built with NewSorted.
	ErrUnsorted = errors.New("merkle: tree is not sorted")

	// ErrProofFailed is the error returned when a proof does not verify.
	ErrProofFailed = errors.New("merkle: proof verification failed")
)

// HashFunc is a collision resistant hash function.
type HashFunc func([]byte) []byte

var (
	// SM3 hashes with SM3 (GB/T 32905).
	SM3 HashFunc = func(b []byte) []byte {
		h := sm3.Sum(b)
		return h[:]
	}

	// SHA256 hashes with SHA-256.
	SHA256 HashFunc = func(b []byte) []byte {
		h := sha256.Sum256(b)
		return h[:]
	}

	// BLAKE2b256 hashes with unkeyed BLAKE2b-256.
	BLAKE2b256 HashFunc = func(b []byte) []byte {
		h := blake2b.Sum256(b)
		return h[:]
	}

	// SHA3_256 hashes with SHA3-256.
	SHA3_256 HashFunc = func(b []byte) []byte {
		h := sha3.Sum256(b)
		return h[:]
	}
)

// Tree is an immutable Merkle tree.
type Tree struct {
	hash   HashFunc
	leaves [][]byte
	levels [][][]byte
	root   []byte
	sorted bool
}

// New builds a tree over leaves, in the order given.
func New(hash HashFunc, leaves [][]byte) *Tree {
	t := &Tree{
		hash:   hash,
		leaves: cloneAll(leaves),
	}
	t.build()

	return t
}

// NewSorted builds a tree over the sorted, de-duplicated leaves.  Only
// sorted trees can produce non-inclusion proofs.
func NewSorted(hash HashFunc, leaves [][]byte) *Tree {
	sorted := cloneAll(leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	uniq := sorted[:0]
	for i, l := range sorted {
		if i == 0 || !bytes.Equal(l, sorted[i-1]) {
			uniq = append(uniq, l)
		}
	}

	t := &Tree{
		hash:   hash,
		leaves: uniq,
		sorted: true,
	}
	t.build()

	return t
}

// Root returns the root hash.  The root of an empty tree is the hash of
// the empty string.
func (t *Tree) Root() []byte {
	return append([]byte{}, t.root...)
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.leaves)
}

func (t *Tree) build() {
	if len(t.leaves) == 0 {
		t.root = t.hash(nil)
		return
	}

	level := make([][]byte, 0, len(t.leaves))
	for _, l := range t.leaves {
		level = append(level, hashLeaf(t.hash, l))
	}
	t.levels = append(t.levels, level)

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashNode(t.hash, left, right))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	t.root = level[0]
}

// InclusionProof is an audit path from a leaf to the root.
type InclusionProof struct {
	// Index is the leaf's position in the tree.
	Index int

	// Path is the sibling hashes, from the leaf level upwards.
	Path [][]byte
}

// ProveInclusion returns an inclusion proof for leaf.
func (t *Tree) ProveInclusion(leaf []byte) (*InclusionProof, error) {
	idx, found := t.find(leaf)
	if !found {
		return nil, ErrNotFound
	}

	return t.proveIndex(idx), nil
}

func (t *Tree) proveIndex(idx int) *InclusionProof {
	proof := &InclusionProof{
		Index: idx,
	}
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}
		proof.Path = append(proof.Path, level[sibling])
		idx >>= 1
	}

	return proof
}

// find returns the index of leaf, or for a sorted tree, the index where
// it would be inserted.
func (t *Tree) find(leaf []byte) (int, bool) {
	if t.sorted {
		idx := sort.Search(len(t.leaves), func(i int) bool {
			return bytes.Compare(t.leaves[i], leaf) >= 0
		})
		return idx, idx < len(t.leaves) && bytes.Equal(t.leaves[idx], leaf)
	}

	for i, l := range t.leaves {
		if bytes.Equal(l, leaf) {
			return i, true
		}
	}
	return -1, false
}

// VerifyInclusion checks that proof places leaf under root.
func VerifyInclusion(hash HashFunc, root, leaf []byte, proof *InclusionProof) error {
	if proof == nil {
		return ErrProofFailed
	}
	computed, _ := walk(hash, leaf, proof)
	if !bytes.Equal(computed, root) {
		return ErrProofFailed
	}

	return nil
}

// walk recomputes the root from a leaf and its audit path, and reports
// whether the leaf is the right-most leaf of the tree.
func walk(hash HashFunc, leaf []byte, proof *InclusionProof) ([]byte, bool) {
	cur := hashLeaf(hash, leaf)
	idx := proof.Index
	if idx < 0 {
		return nil, false
	}

	rightmost := true
	for _, sibling := range proof.Path {
		if idx&1 == 0 {
			// A left node with no right neighbour is paired with itself.
			if !bytes.Equal(sibling, cur) {
				rightmost = false
			}
			cur = hashNode(hash, cur, sibling)
		} else {
			cur = hashNode(hash, sibling, cur)
		}
		idx >>= 1
	}
	if idx != 0 {
		return nil, false
	}

	return cur, rightmost
}

// Neighbor is a leaf adjacent to an absent value, with its inclusion
// proof.
type Neighbor struct {
	Leaf  []byte
	Proof *InclusionProof
}

// NonInclusionProof shows that a value falls strictly between two adjacent
// leaves of a sorted tree, or before the first or after the last leaf.
type NonInclusionProof struct {
	// Left is the largest leaf smaller than the value, nil if none.
	Left *Neighbor

	// Right is the smallest leaf larger than the value, nil if none.
	Right *Neighbor
}

// ProveNonInclusion returns a proof that leaf is absent from a sorted tree.
func (t *Tree) ProveNonInclusion(leaf []byte) (*NonInclusionProof, error) {
	if !t.sorted {
		return nil, ErrUnsorted
	}
	if len(t.leaves) == 0 {
		return nil, ErrEmpty
	}

	idx, found := t.find(leaf)
	if found {
		return nil, ErrExists
	}

	var proof NonInclusionProof
	if idx > 0 {
		proof.Left = &Neighbor{
			Leaf:  append([]byte{}, t.leaves[idx-1]...),
			Proof: t.proveIndex(idx - 1),
		}
	}
	if idx < len(t.leaves) {
		proof.Right = &Neighbor{
			Leaf:  append([]byte{}, t.leaves[idx]...),
			Proof: t.proveIndex(idx),
		}
	}

	return &proof, nil
}

// VerifyNonInclusion checks that proof shows leaf is absent from the sorted
// tree with the given root.
func VerifyNonInclusion(hash HashFunc, root, leaf []byte, proof *NonInclusionProof) error {
	if proof == nil || (proof.Left == nil && proof.Right == nil) {
		return ErrProofFailed
	}

	var leftRightmost bool
	for _, n := range []*Neighbor{proof.Left, proof.Right} {
		if n == nil {
			continue
		}
		if n.Proof == nil {
			return ErrProofFailed
		}
		computed, rightmost := walk(hash, n.Leaf, n.Proof)
		if !bytes.Equal(computed, root) {
			return ErrProofFailed
		}
		if n == proof.Left {
			leftRightmost = rightmost
		}
	}

	switch {
	case proof.Left != nil && proof.Right != nil:
		if proof.Right.Proof.Index != proof.Left.Proof.Index+1 {
			return ErrProofFailed
		}
		if bytes.Compare(proof.Left.Leaf, leaf) >= 0 || bytes.Compare(leaf, proof.Right.Leaf) >= 0 {
			return ErrProofFailed
		}
	case proof.Right != nil:
		if proof.Right.Proof.Index != 0 || bytes.Compare(leaf, proof.Right.Leaf) >= 0 {
			return ErrProofFailed
		}
	default:
		if !leftRightmost || bytes.Compare(proof.Left.Leaf, leaf) >= 0 {
			return ErrProofFailed
		}
	}

	return nil
}

func hashLeaf(hash HashFunc, leaf []byte) []byte {
	buf := make([]byte, 0, 1+len(leaf))
	buf = append(buf, leafPrefix)
	buf = append(buf, leaf...)
	return hash(buf)
}

func hashNode(hash HashFunc, left, right []byte) []byte {
	buf := make([]byte, 0, 1+len(left)+len(right))
	buf = append(buf, nodePrefix)
	buf = append(buf, left...)
	buf = append(buf, right...)
	return hash(buf)
}

func cloneAll(in [][]byte) [][]byte {
	out := make([][]byte, 0, len(in))
	for _, b := range in {
		out = append(out, append([]byte{}, b...))
	}
	return out
}
