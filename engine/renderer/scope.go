package renderer

import "github.com/spaghettifunk/anima/engine/renderer/gpu"

// Scope owns device objects and releases them in reverse creation order.
type Scope struct {
	owned []gpu.Releaser
}

func NewScope() *Scope {
	return &Scope{}
}

func (s *Scope) Own(r gpu.Releaser) {
	s.owned = append(s.owned, r)
}

// Release destroys everything owned, newest first. The scope can be reused.
func (s *Scope) Release() {
	for i := len(s.owned) - 1; i >= 0; i-- {
		s.owned[i].Destroy()
		s.owned[i] = nil
	}
	s.owned = s.owned[:0]
}

// Forget drops ownership of everything without destroying it.
func (s *Scope) Forget() {
	s.owned = s.owned[:0]
}

func (s *Scope) Len() int {
	return len(s.owned)
}
