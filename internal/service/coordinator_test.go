package service

import (
	"sync"
	"testing"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

func TestCoordinator_ModeSwitchSupersedes(t *testing.T) {
	c := NewCoordinator(domain.ModeImage)

	a := c.Begin(domain.ClassAnalysis)
	if a.Token != 1 {
		t.Fatalf("expected first token 1, got %d", a.Token)
	}

	c.SetMode(domain.ModeStory)
	if cur := c.Current(domain.ClassAnalysis); cur.Token != 2 {
		t.Fatalf("expected mode switch to bump token to 2, got %d", cur.Token)
	}

	applied := false
	if c.Commit(a, func() { applied = true }) {
		t.Fatal("expected stale ticket to be rejected")
	}
	if applied {
		t.Fatal("stale result must not be applied")
	}
}

func TestCoordinator_NewerBeginSupersedes(t *testing.T) {
	c := NewCoordinator(domain.ModeImage)

	first := c.Begin(domain.ClassAnalysis)
	second := c.Begin(domain.ClassAnalysis)

	if c.Valid(first) {
		t.Error("expected first ticket to be stale after a newer Begin")
	}
	if !c.Commit(second, func() {}) {
		t.Error("expected latest ticket to commit")
	}
}

func TestCoordinator_ClassesAreIndependent(t *testing.T) {
	c := NewCoordinator(domain.ModeImage)

	analysis := c.Begin(domain.ClassAnalysis)
	content := c.Begin(domain.ClassContent)
	c.Begin(domain.ClassContent)

	if !c.Valid(analysis) {
		t.Error("a new content request must not supersede analysis")
	}
	if c.Valid(content) {
		t.Error("expected the older content ticket to be stale")
	}

	c.Invalidate(domain.ClassAnalysis)
	if c.Valid(analysis) {
		t.Error("expected Invalidate to stale the analysis ticket")
	}
}

func TestCoordinator_SameModeIsNoop(t *testing.T) {
	c := NewCoordinator(domain.ModeVideo)
	tk := c.Begin(domain.ClassContent)

	if c.SetMode(domain.ModeVideo) {
		t.Fatal("expected SetMode to report no change")
	}
	if !c.Valid(tk) {
		t.Fatal("re-selecting the current mode must not invalidate work")
	}
}

func TestCoordinator_SwitchBackStillStale(t *testing.T) {
	c := NewCoordinator(domain.ModeImage)
	tk := c.Begin(domain.ClassAnalysis)

	c.SetMode(domain.ModeStory)
	c.SetMode(domain.ModeImage)

	if c.Valid(tk) {
		t.Fatal("a ticket from before a mode round-trip must stay stale")
	}
}

func TestCoordinator_ConcurrentCommitsOnlyLatestWins(t *testing.T) {
	c := NewCoordinator(domain.ModeImage)

	tickets := make([]Ticket, 50)
	for i := range tickets {
		tickets[i] = c.Begin(domain.ClassAnalysis)
	}

	var mu sync.Mutex
	var winners []uint64
	var wg sync.WaitGroup
	for _, tk := range tickets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Commit(tk, func() {
				mu.Lock()
				winners = append(winners, tk.Token)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	if len(winners) != 1 || winners[0] != 50 {
		t.Fatalf("expected only token 50 to commit, got %v", winners)
	}
}

func TestCoordinator_SetModeThenAppliesBeforeNewTickets(t *testing.T) {
	c := NewCoordinator(domain.ModeImage)

	var (
		mu      sync.Mutex
		events  []string
		started = make(chan struct{})
		release = make(chan struct{})
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.SetModeThen(domain.ModeStory, func() {
			close(started)
			<-release
			record("reset")
		})
	}()

	<-started
	committed := make(chan bool)
	go func() {
		tk := c.Begin(domain.ClassAnalysis)
		committed <- c.Commit(tk, func() { record("commit") })
	}()
	close(release)
	<-done

	if !<-committed {
		t.Fatal("expected the ticket issued after the switch to commit")
	}
	if len(events) != 2 || events[0] != "reset" || events[1] != "commit" {
		t.Fatalf("expected reset before commit, got %v", events)
	}
}
