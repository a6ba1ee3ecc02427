package geometry

import "sync"

type ResourceKind string

const (
	ResourceGeometry ResourceKind = "geometry"
	ResourceMaterial ResourceKind = "material"
	ResourceLight    ResourceKind = "light"
)

type ResourceID uint64

// Allocator hands out GPU-side resource handles. Release of an unknown or
// already released id must be a no-op.
type Allocator interface {
	Allocate(kind ResourceKind) ResourceID
	Release(id ResourceID)
}

// Pool is an Allocator that tracks live handles.
type Pool struct {
	mu   sync.Mutex
	next ResourceID
	live map[ResourceID]ResourceKind
}

func NewPool() *Pool {
	return &Pool{live: make(map[ResourceID]ResourceKind)}
}

func (p *Pool) Allocate(kind ResourceKind) ResourceID {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	p.live[p.next] = kind
	return p.next
}

func (p *Pool) Release(id ResourceID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.live, id)
}

// Live returns the number of live handles of the given kinds, or of all
// kinds when none are given.
func (p *Pool) Live(kinds ...ResourceKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(kinds) == 0 {
		return len(p.live)
	}

	n := 0
	for _, k := range p.live {
		for _, want := range kinds {
			if k == want {
				n++
				break
			}
		}
	}
	return n
}
