// Package fingerprint computes the StateFingerprint used to deduplicate
// visited states during exploration (spec.md §3). The hash is a truncated
// SHA-256 over a canonical, sorted serialization of everything that counts
// as observable state: the declared context projection and every adapter's
// Observe() result.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"venomqa.dev/venomqa/value"
)

// StateID is a StateFingerprint: a lowercase hex string, 16 characters by
// default (spec.md §3: "truncated to 16 hex characters").
type StateID string

// Input bundles everything that feeds into a fingerprint. AdapterNames must
// be sorted; AdapterObserve is keyed by adapter name.
type Input struct {
	ContextProjection map[string]string // key -> canonical JSON, from worldctx.Context.Projection
	AdapterNames      []string
	AdapterObserve    map[string]map[string]interface{}
	LastAction        string // included only if the World was configured to do so
}

// Compute renders Input into its canonical string form and returns the first
// hexLen hex characters of its SHA-256 digest.
func Compute(in Input, hexLen int) StateID {
	var b strings.Builder

	ctxKeys := make([]string, 0, len(in.ContextProjection))
	for k := range in.ContextProjection {
		ctxKeys = append(ctxKeys, k)
	}
	sort.Strings(ctxKeys)
	b.WriteString("ctx{")
	for _, k := range ctxKeys {
		fmt.Fprintf(&b, "%s:%s;", k, in.ContextProjection[k])
	}
	b.WriteString("}")

	names := append([]string(nil), in.AdapterNames...)
	sort.Strings(names)
	b.WriteString("adapters{")
	for _, name := range names {
		fmt.Fprintf(&b, "%s:%s;", name, canonicalizeObserve(in.AdapterObserve[name]))
	}
	b.WriteString("}")

	if in.LastAction != "" {
		fmt.Fprintf(&b, "last:%s", in.LastAction)
	}

	sum := sha256.Sum256([]byte(b.String()))
	hexStr := hex.EncodeToString(sum[:])
	if hexLen <= 0 || hexLen > len(hexStr) {
		hexLen = 16
	}
	return StateID(hexStr[:hexLen])
}

// canonicalizeObserve renders an adapter's Observe() map as sorted-key
// canonical JSON via the value package, so two structurally identical
// observations always hash identically regardless of map iteration order.
// Observe() results are plain Go values (map[string]interface{}, produced by
// adapters from counts/hashes/sorted key lists), so From is used rather than
// Of, which only accepts an already-built Value tree.
func canonicalizeObserve(obs map[string]interface{}) string {
	if obs == nil {
		return "null"
	}
	v, err := value.From(obs)
	if err != nil {
		// Observe() is adapter-authored and must only ever return
		// JSON-shaped data; a conversion failure here is a programmer error
		// in the adapter, not a runtime condition to recover from.
		panic(fmt.Sprintf("fingerprint: adapter Observe() returned non-JSON-shaped data: %v", err))
	}
	return v.Canonical()
}
