package memory

import (
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
)

// Option customises the gate service.
type Option func(*service)

// WithRunDAO lets the gate service update the owning run when a decision is
// made; the allocator then notices the changed execution state and resumes
// scheduling.
func WithRunDAO(runDAO dao.Service[string, execution.Run]) Option {
	return func(s *service) { s.runDAO = runDAO }
}
