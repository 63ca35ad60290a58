package router

import (
	"strings"
	"sync"

	"github.com/tabularqa/tabularqa/internal/plan"
)

// PlanCache remembers QUERY results per session, keyed by the normalized
// question text. It holds plans only for the process lifetime; sessions are
// dropped wholesale via Forget.
type PlanCache struct {
	mu       sync.Mutex
	sessions map[string]map[string]plan.RouterResult
}

func NewPlanCache() *PlanCache {
	return &PlanCache{sessions: make(map[string]map[string]plan.RouterResult)}
}

func (c *PlanCache) Get(sessionID, question string) (plan.RouterResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		return plan.RouterResult{}, false
	}
	result, ok := session[normalizeQuestion(question)]
	return result, ok
}

func (c *PlanCache) Put(sessionID, question string, result plan.RouterResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		session = make(map[string]plan.RouterResult)
		c.sessions[sessionID] = session
	}
	session[normalizeQuestion(question)] = result
}

// Forget drops all cached plans for a session.
func (c *PlanCache) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// normalizeQuestion lowercases and collapses runs of whitespace so trivially
// reworded repeats of the same question share a cache slot.
func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
