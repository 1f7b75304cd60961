package x402

import (
	"fmt"
	"sync"
)

// SchemeHandlerSlug identifies a registered scheme handler instance: the
// chain it runs on, the protocol version it speaks, and the scheme name.
// The registry owns the handler instance keyed by this slug; its lifetime
// is the registry's lifetime (spec §3 "Ownership").
type SchemeHandlerSlug struct {
	Chain   ChainId
	Version int
	Scheme  string
}

// AsWildcard returns the slug with its chain reference replaced by "*",
// used as the registry's fallback lookup key.
func (s SchemeHandlerSlug) AsWildcard() SchemeHandlerSlug {
	s.Chain = s.Chain.AsWildcard()
	return s
}

func (s SchemeHandlerSlug) String() string {
	return fmt.Sprintf("%s:v%d:%s", s.Chain.String(), s.Version, s.Scheme)
}

// slugForNetwork builds a SchemeHandlerSlug from a legacy Network string,
// version and scheme name, tolerating the loose "namespace:*" shorthand
// used throughout Register() call sites. Networks that don't parse as a
// CAIP-2 ChainId are tried against DefaultNetworkRegistry, since V1 callers
// historically register handlers under simple names like "base" or
// "solana-devnet" (spec §4.2).
func slugForNetwork(network Network, version int, scheme string) (SchemeHandlerSlug, error) {
	chain, err := ParseChainId(string(network))
	if err != nil {
		if cid, ok := DefaultNetworkRegistry.ResolveChainID(string(network)); ok {
			return SchemeHandlerSlug{Chain: cid, Version: version, Scheme: scheme}, nil
		}
		return SchemeHandlerSlug{}, err
	}
	return SchemeHandlerSlug{Chain: chain, Version: version, Scheme: scheme}, nil
}

// schemeRegistry is a process-wide map from SchemeHandlerSlug to a handler
// instance. Lookup is the two-phase exact/wildcard fallback of spec §4.3:
// try the exact (namespace, reference, version, scheme) slug; on miss,
// substitute reference="*" and retry. Registration overwrites last-wins.
// Constructed incrementally at startup via Register*; read-only at request
// time, hence RWMutex rather than a heavier structure.
type schemeRegistry[H any] struct {
	mu       sync.RWMutex
	handlers map[SchemeHandlerSlug]H
}

func newSchemeRegistry[H any]() *schemeRegistry[H] {
	return &schemeRegistry[H]{handlers: make(map[SchemeHandlerSlug]H)}
}

// register stores h under slug, overwriting any previous handler there.
func (r *schemeRegistry[H]) register(slug SchemeHandlerSlug, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[slug] = h
}

// registerNetworks stores h under one slug per network, each derived from
// the network string at (version, scheme). Networks that fail to parse as
// a ChainId are skipped (callers historically passed legacy V1 names here;
// those route through the V1 NetworkRegistry translation before reaching
// this layer, see network_registry.go).
func (r *schemeRegistry[H]) registerNetworks(networks []Network, version int, scheme string, h H) {
	for _, n := range networks {
		slug, err := slugForNetwork(n, version, scheme)
		if err != nil {
			continue
		}
		r.register(slug, h)
	}
}

// resolve looks up the handler for slug: exact match first, then with the
// chain reference substituted for "*" (spec §4.3 two-phase fallback).
func (r *schemeRegistry[H]) resolve(slug SchemeHandlerSlug) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[slug]; ok {
		return h, true
	}
	if !slug.Chain.IsWildcard() {
		if h, ok := r.handlers[slug.AsWildcard()]; ok {
			return h, true
		}
	}
	var zero H
	return zero, false
}

// resolveNetwork is the Network-string-keyed convenience wrapper around resolve.
func (r *schemeRegistry[H]) resolveNetwork(network Network, version int, scheme string) (H, bool) {
	slug, err := slugForNetwork(network, version, scheme)
	if err != nil {
		var zero H
		return zero, false
	}
	return r.resolve(slug)
}

// slugs returns every registered slug, for supported-kinds aggregation.
func (r *schemeRegistry[H]) slugs() []SchemeHandlerSlug {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SchemeHandlerSlug, 0, len(r.handlers))
	for s := range r.handlers {
		out = append(out, s)
	}
	return out
}

// handlerAt returns the handler registered at exactly slug (no wildcard
// fallback), for iteration use cases that already enumerate via slugs().
func (r *schemeRegistry[H]) handlerAt(slug SchemeHandlerSlug) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[slug]
	return h, ok
}
