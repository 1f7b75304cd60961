package x402

import (
	"fmt"
	"regexp"
	"strings"
)

// namespacePattern and referencePattern enforce the CAIP-2 grammar this
// package accepts: namespace is lowercase alphanumeric, reference is either
// the wildcard "*" or 1-32 chars of [-_A-Za-z0-9]. Stricter than a bare
// ":"-split, following the Rust reference implementation this protocol was
// distilled from rather than the looser prefix matching of a plain string.
var (
	namespacePattern = regexp.MustCompile(`^[a-z0-9]+$`)
	referencePattern = regexp.MustCompile(`^[-_A-Za-z0-9]{1,32}$`)
)

// ChainId is a CAIP-2 chain identifier: a (namespace, reference) pair, e.g.
// eip155:8453 or solana:4uhcVJyU9pJkvQyS88uRDiswHXSCkY3zQawwpjk2NsNY.
type ChainId struct {
	Namespace string
	Reference string
}

// ParseChainId parses a "namespace:reference" string into a ChainId.
func ParseChainId(s string) (ChainId, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return ChainId{}, fmt.Errorf("%w: missing ':' in chain id %q", ErrInvalidFormat, s)
	}
	namespace, reference := s[:idx], s[idx+1:]
	if !namespacePattern.MatchString(namespace) {
		return ChainId{}, fmt.Errorf("%w: invalid namespace %q", ErrInvalidFormat, namespace)
	}
	if reference != "*" && !referencePattern.MatchString(reference) {
		return ChainId{}, fmt.Errorf("%w: invalid reference %q", ErrInvalidFormat, reference)
	}
	return ChainId{Namespace: namespace, Reference: reference}, nil
}

// String renders the ChainId back to its CAIP-2 wire form.
func (c ChainId) String() string {
	return c.Namespace + ":" + c.Reference
}

// IsWildcard reports whether this ChainId's reference is the "*" wildcard.
func (c ChainId) IsWildcard() bool {
	return c.Reference == "*"
}

// AsWildcard returns a copy of c with the reference replaced by "*".
func (c ChainId) AsWildcard() ChainId {
	return ChainId{Namespace: c.Namespace, Reference: "*"}
}

// ToNetwork converts a ChainId to the legacy Network string alias used
// throughout the wire-model types.
func (c ChainId) ToNetwork() Network {
	return Network(c.String())
}

// ChainIdPatternKind distinguishes the three ChainIdPattern shapes.
type ChainIdPatternKind int

const (
	PatternExact ChainIdPatternKind = iota
	PatternWildcard
	PatternSet
)

// ChainIdPattern matches one or more ChainIds: an exact pair, every
// reference within a namespace, or an explicit set of references within a
// namespace.
type ChainIdPattern struct {
	Kind       ChainIdPatternKind
	Namespace  string
	Reference  string   // PatternExact only
	References []string // PatternSet only
}

// ExactPattern builds a ChainIdPattern matching only the given ChainId.
func ExactPattern(c ChainId) ChainIdPattern {
	return ChainIdPattern{Kind: PatternExact, Namespace: c.Namespace, Reference: c.Reference}
}

// WildcardPattern builds a ChainIdPattern matching every reference in namespace.
func WildcardPattern(namespace string) ChainIdPattern {
	return ChainIdPattern{Kind: PatternWildcard, Namespace: namespace}
}

// SetPattern builds a ChainIdPattern matching a fixed set of references
// within namespace.
func SetPattern(namespace string, references ...string) ChainIdPattern {
	return ChainIdPattern{Kind: PatternSet, Namespace: namespace, References: references}
}

// Matches reports whether cid is matched by this pattern: namespaces must
// agree, and the reference must be allowed per the pattern kind.
func (p ChainIdPattern) Matches(cid ChainId) bool {
	if p.Namespace != cid.Namespace {
		return false
	}
	switch p.Kind {
	case PatternWildcard:
		return true
	case PatternExact:
		return p.Reference == cid.Reference
	case PatternSet:
		for _, ref := range p.References {
			if ref == cid.Reference {
				return true
			}
		}
		return false
	default:
		return false
	}
}
