package language

import "strings"

// DefaultCode is returned when nothing in the header matches.
const DefaultCode = "en"

// Negotiator resolves an Accept-Language header against a fixed set of supported codes.
// It is immutable after construction and safe for concurrent use.
type Negotiator struct {
	supported []string
	index     map[string]string
	fallback  string
}

// NewNegotiator keeps the supported codes in the given order. An empty fallback means DefaultCode.
func NewNegotiator(supported []string, fallback string) *Negotiator {
	n := &Negotiator{
		supported: make([]string, 0, len(supported)),
		index:     make(map[string]string, len(supported)),
		fallback:  NormalizeTag(fallback),
	}
	for _, code := range supported {
		tag := NormalizeTag(code)
		if tag == "" {
			continue
		}
		if _, exists := n.index[tag]; exists {
			continue
		}
		n.index[tag] = tag
		n.supported = append(n.supported, tag)
	}
	if n.fallback == "" {
		n.fallback = DefaultCode
	}
	return n
}

// Supported returns a copy of the supported codes in configuration order.
func (n *Negotiator) Supported() []string {
	out := make([]string, len(n.supported))
	copy(out, n.supported)
	return out
}

// Default returns the fallback code.
func (n *Negotiator) Default() string {
	return n.fallback
}

// IsSupported reports whether code is one of the supported codes.
func (n *Negotiator) IsSupported(code string) bool {
	_, ok := n.index[NormalizeTag(code)]
	return ok
}

// Resolve walks the header candidates in order and returns the first one that matches a supported code,
// either exactly or by its primary subtag. Quality weights are ignored.
func (n *Negotiator) Resolve(header string) string {
	if strings.TrimSpace(header) == "" {
		return n.fallback
	}

	for _, part := range strings.Split(header, ",") {
		candidate := part
		if semi := strings.IndexByte(candidate, ';'); semi >= 0 {
			candidate = candidate[:semi]
		}
		tag := NormalizeTag(candidate)
		if tag == "" {
			continue
		}
		if code, ok := n.index[tag]; ok {
			return code
		}
		if code, ok := n.index[NormalizeCode(tag)]; ok {
			return code
		}
	}

	return n.fallback
}
