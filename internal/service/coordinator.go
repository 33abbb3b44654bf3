package service

import (
	"sync"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

// Ticket is the generation token captured when an operation starts.
type Ticket struct {
	Class domain.OperationClass
	Token uint64
	Mode  domain.Mode
}

// Coordinator issues generation tokens per operation class. A result may be
// committed only while its ticket's token and mode are still current; every
// newer Begin, mode change or Invalidate turns older tickets stale.
type Coordinator struct {
	mu     sync.Mutex
	mode   domain.Mode
	tokens map[domain.OperationClass]uint64
}

func NewCoordinator(mode domain.Mode) *Coordinator {
	return &Coordinator{
		mode:   mode,
		tokens: make(map[domain.OperationClass]uint64),
	}
}

// Begin supersedes any in-flight operation of the class and returns the new
// ticket.
func (c *Coordinator) Begin(class domain.OperationClass) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[class]++
	return Ticket{Class: class, Token: c.tokens[class], Mode: c.mode}
}

// Current returns a ticket for the latest issued token without superseding
// anything.
func (c *Coordinator) Current(class domain.OperationClass) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Ticket{Class: class, Token: c.tokens[class], Mode: c.mode}
}

func (c *Coordinator) Mode() domain.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches the active mode and invalidates every class. It reports
// whether the mode actually changed.
func (c *Coordinator) SetMode(mode domain.Mode) bool {
	return c.SetModeThen(mode, nil)
}

// SetModeThen is SetMode with apply run under the same lock when the mode
// changes, so no ticket issued for the new mode can commit before apply.
func (c *Coordinator) SetModeThen(mode domain.Mode, apply func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == c.mode {
		return false
	}
	c.mode = mode
	for class := range c.tokens {
		c.tokens[class]++
	}
	if apply != nil {
		apply()
	}
	return true
}

// Invalidate makes every outstanding ticket of the given classes stale.
func (c *Coordinator) Invalidate(classes ...domain.OperationClass) {
	c.InvalidateThen(nil, classes...)
}

// InvalidateThen is Invalidate with apply run under the same lock.
func (c *Coordinator) InvalidateThen(apply func(), classes ...domain.OperationClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, class := range classes {
		c.tokens[class]++
	}
	if apply != nil {
		apply()
	}
}

func (c *Coordinator) Valid(t Ticket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid(t)
}

func (c *Coordinator) valid(t Ticket) bool {
	return t.Mode == c.mode && t.Token == c.tokens[t.Class]
}

// Commit runs apply only if t is still current. The check and apply happen
// under one lock so no invalidation can slip between them. Stale results are
// dropped and Commit returns false.
func (c *Coordinator) Commit(t Ticket, apply func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid(t) {
		return false
	}
	apply()
	return true
}
