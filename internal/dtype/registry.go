package dtype

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/perigee-data/groundcore/internal/dict"
)

// Registry resolves type name strings to immutable Type descriptors.
// Resolution is idempotent: every resolution of the same name yields an
// equal descriptor, and repeated resolutions return the cached instance.
//
// A Registry is safe for concurrent use. First-time resolution of a new
// name is a lookup-or-insert; two goroutines racing on the same name may
// build duplicate descriptors transiently, but only one is published and
// equality is by name, never by identity.
type Registry struct {
	mu    sync.RWMutex
	cache map[string]Type

	cmds dict.Table
	evrs dict.Table
}

// Option configures a Registry.
type Option func(*Registry)

// WithCommandTable binds the command dictionary consulted by CMD16.
func WithCommandTable(t dict.Table) Option {
	return func(r *Registry) { r.cmds = t }
}

// WithEventTable binds the event dictionary consulted by EVR16.
func WithEventTable(t dict.Table) Option {
	return func(r *Registry) { r.evrs = t }
}

// NewRegistry creates an empty type registry. Without dictionary options,
// CMD16 and EVR16 still resolve but every lookup on them fails.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{cache: make(map[string]Type)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the Type for a canonical name, constructing and caching
// it on first use. Unknown names fail with ErrInvalidTypeName; malformed
// array suffixes fail with ErrInvalidArraySize.
func (r *Registry) Resolve(name string) (Type, error) {
	r.mu.RLock()
	t, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := r.build(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[name]; ok {
		return cached, nil
	}
	r.cache[name] = t
	return t, nil
}

func (r *Registry) build(name string) (Type, error) {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return r.buildArray(name, i)
	}

	switch name {
	case "TIME8":
		return NewTime8Type(), nil
	case "TIME32":
		return NewTime32Type(), nil
	case "TIME40":
		return NewTime40Type(), nil
	case "TIME64":
		return NewTime64Type(), nil
	case "CMD16":
		return NewCmdType(r.cmds), nil
	case "EVR16":
		return NewEVRType(r.evrs), nil
	}

	if t, ok := primitives[name]; ok {
		return t, nil
	}

	// S<bytes>: fixed-length ASCII, suffix is the byte length
	if rest, ok := strings.CutPrefix(name, "S"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			return &PrimitiveType{name: name, nbits: n * 8, str: true}, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidTypeName, name)
}

func (r *Registry) buildArray(name string, open int) (Type, error) {
	if !strings.HasSuffix(name, "]") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTypeName, name)
	}

	sizeStr := name[open+1 : len(name)-1]
	n, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %q is not an integer", ErrInvalidArraySize, sizeStr, name)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d in %q", ErrInvalidArraySize, n, name)
	}

	elem, err := r.Resolve(name[:open])
	if err != nil {
		return nil, err
	}
	return NewArrayType(elem, n)
}
