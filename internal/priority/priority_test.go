package priority_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pressline/internal/priority"
)

type queuedJob struct {
	id       string
	press    string
	priority int
	seq      int
}

type memStore struct {
	mu       sync.Mutex
	jobs     []*queuedJob
	failNext map[string]int
	applies  map[string]int

	active    map[string]*int32
	maxActive int32
	hold      time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		failNext: make(map[string]int),
		applies:  make(map[string]int),
		active:   make(map[string]*int32),
	}
}

func (s *memStore) add(id, press string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &queuedJob{id: id, press: press, priority: priority, seq: len(s.jobs)})
}

func (s *memStore) counter(press string) *int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.active[press]
	if !ok {
		c = new(int32)
		s.active[press] = c
	}
	return c
}

func (s *memStore) QueuedSlots(_ context.Context, press string) ([]priority.Slot, error) {
	c := s.counter(press)
	n := atomic.AddInt32(c, 1)
	for {
		current := atomic.LoadInt32(&s.maxActive)
		if n <= current || atomic.CompareAndSwapInt32(&s.maxActive, current, n) {
			break
		}
	}
	if s.hold > 0 {
		time.Sleep(s.hold)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*queuedJob
	for _, job := range s.jobs {
		if job.press == press {
			matched = append(matched, job)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority < matched[j].priority
		}
		return matched[i].seq < matched[j].seq
	})
	slots := make([]priority.Slot, len(matched))
	for i, job := range matched {
		slots[i] = priority.Slot{JobID: job.id, Priority: job.priority}
	}
	return slots, nil
}

func (s *memStore) ApplyPriorities(_ context.Context, press string, slots []priority.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext[press] > 0 {
		s.failNext[press]--
		return errors.New("database is locked")
	}
	s.applies[press]++
	for _, slot := range slots {
		for _, job := range s.jobs {
			if job.id == slot.JobID && job.press == press {
				job.priority = slot.Priority
			}
		}
	}
	return nil
}

// ObserveReassign closes the read window opened by QueuedSlots; the engine
// calls it while still holding the press lock.
func (s *memStore) ObserveReassign(press string, _ int, _ time.Duration, _ error) {
	atomic.AddInt32(s.counter(press), -1)
}

func (s *memStore) QueuedPresses(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var presses []string
	for _, job := range s.jobs {
		if !slices.Contains(presses, job.press) {
			presses = append(presses, job.press)
		}
	}
	return presses, nil
}

func (s *memStore) order(press string) ([]string, []int) {
	slots, _ := s.QueuedSlots(context.Background(), press)
	atomic.AddInt32(s.counter(press), -1)
	ids := make([]string, len(slots))
	prios := make([]int, len(slots))
	for i, slot := range slots {
		ids[i] = slot.JobID
		prios[i] = slot.Priority
	}
	return ids, prios
}

type recordingObserver struct {
	mu    sync.Mutex
	runs  map[string]int
	fails map[string]int
}

func (o *recordingObserver) ObserveReassign(press string, renumbered int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runs == nil {
		o.runs = map[string]int{}
		o.fails = map[string]int{}
	}
	o.runs[press] += renumbered
	if err != nil {
		o.fails[press]++
	}
}

func newReassigner(t *testing.T, store priority.Store, opts priority.Options) *priority.Reassigner {
	t.Helper()
	opts.Store = store
	r, err := priority.NewReassigner(opts)
	if err != nil {
		t.Fatalf("NewReassigner: %v", err)
	}
	return r
}

func TestRenumberReturnsOnlyChangedSlots(t *testing.T) {
	slots := []priority.Slot{
		{JobID: "a", Priority: 1},
		{JobID: "b", Priority: 3},
		{JobID: "c", Priority: 3},
		{JobID: "d", Priority: 4},
	}
	changed := priority.Renumber(slots)
	want := []priority.Slot{{JobID: "b", Priority: 2}}
	if !slices.Equal(changed, want) {
		t.Fatalf("Renumber = %v, want %v", changed, want)
	}
	if slots[1].Priority != 3 {
		t.Fatal("Renumber modified its input")
	}
}

func TestRenumberDenseInputIsNoop(t *testing.T) {
	if changed := priority.Renumber([]priority.Slot{{JobID: "a", Priority: 1}, {JobID: "b", Priority: 2}}); len(changed) != 0 {
		t.Fatalf("expected no changes, got %v", changed)
	}
	if changed := priority.Renumber(nil); len(changed) != 0 {
		t.Fatalf("expected no changes for empty queue, got %v", changed)
	}
}

func TestDense(t *testing.T) {
	tests := []struct {
		name  string
		prios []int
		want  bool
	}{
		{"empty", nil, true},
		{"ordered", []int{1, 2, 3}, true},
		{"unordered", []int{3, 1, 2}, true},
		{"gap", []int{1, 3}, false},
		{"duplicate", []int{1, 1, 2}, false},
		{"starts at two", []int{2, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := make([]priority.Slot, len(tt.prios))
			for i, p := range tt.prios {
				slots[i] = priority.Slot{JobID: string(rune('a' + i)), Priority: p}
			}
			if got := priority.Dense(slots); got != tt.want {
				t.Fatalf("Dense(%v) = %v, want %v", tt.prios, got, tt.want)
			}
		})
	}
}

func TestReassignClosesGapsPreservingOrder(t *testing.T) {
	store := newMemStore()
	store.add("j1", "X", 1)
	store.add("j3", "X", 3)
	store.add("j7", "X", 7)
	r := newReassigner(t, store, priority.Options{})

	if err := r.Reassign(context.Background(), "X"); err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	ids, prios := store.order("X")
	if !slices.Equal(ids, []string{"j1", "j3", "j7"}) {
		t.Fatalf("order changed: %v", ids)
	}
	if !slices.Equal(prios, []int{1, 2, 3}) {
		t.Fatalf("expected dense priorities, got %v", prios)
	}
}

func TestReassignBreaksTiesByInsertionOrder(t *testing.T) {
	store := newMemStore()
	store.add("old", "X", 2)
	store.add("new", "X", 2)
	store.add("first", "X", 1)
	r := newReassigner(t, store, priority.Options{})

	if err := r.Reassign(context.Background(), "X", "X", " X "); err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	ids, prios := store.order("X")
	if !slices.Equal(ids, []string{"first", "old", "new"}) || !slices.Equal(prios, []int{1, 2, 3}) {
		t.Fatalf("unexpected queue %v %v", ids, prios)
	}
	if store.applies["X"] != 1 {
		t.Fatalf("expected deduplicated presses to run once, got %d", store.applies["X"])
	}
}

func TestReassignDiscoversPressesWhenNoneGiven(t *testing.T) {
	store := newMemStore()
	store.add("a", "X", 5)
	store.add("b", "Y", 2)
	store.add("c", "Y", 9)
	r := newReassigner(t, store, priority.Options{})

	if err := r.Reassign(context.Background()); err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	for _, press := range []string{"X", "Y"} {
		_, prios := store.order(press)
		for i, p := range prios {
			if p != i+1 {
				t.Fatalf("press %s not dense: %v", press, prios)
			}
		}
	}
}

func TestReassignRetriesBatch(t *testing.T) {
	store := newMemStore()
	store.add("a", "X", 4)
	store.failNext["X"] = 2
	observer := &recordingObserver{}
	r := newReassigner(t, store, priority.Options{Attempts: 3, Backoff: time.Millisecond, Observer: observer})

	if err := r.Reassign(context.Background(), "X"); err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if _, prios := store.order("X"); !slices.Equal(prios, []int{1}) {
		t.Fatalf("expected priority 1 after retry, got %v", prios)
	}
	if observer.runs["X"] != 1 || observer.fails["X"] != 0 {
		t.Fatalf("unexpected observations: runs=%v fails=%v", observer.runs, observer.fails)
	}
}

func TestReassignIsolatesFailingPress(t *testing.T) {
	store := newMemStore()
	store.add("a", "X", 4)
	store.add("b", "Y", 4)
	store.failNext["X"] = 5
	observer := &recordingObserver{}
	r := newReassigner(t, store, priority.Options{Attempts: 2, Observer: observer})

	err := r.Reassign(context.Background(), "X", "Y")
	if err == nil {
		t.Fatal("expected error for press X")
	}
	if _, prios := store.order("Y"); !slices.Equal(prios, []int{1}) {
		t.Fatalf("press Y should still be renumbered, got %v", prios)
	}
	if _, prios := store.order("X"); !slices.Equal(prios, []int{4}) {
		t.Fatalf("press X should be untouched, got %v", prios)
	}
	if observer.fails["X"] != 1 {
		t.Fatalf("expected one failed observation for X, got %v", observer.fails)
	}
}

func TestReassignSerializesSamePress(t *testing.T) {
	store := newMemStore()
	store.hold = 2 * time.Millisecond
	for i := 0; i < 5; i++ {
		store.add(string(rune('a'+i)), "X", 10*(i+1))
	}
	locks := priority.NewLocks()
	r := newReassigner(t, store, priority.Options{Locks: locks, Observer: store})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Reassign(context.Background(), "X"); err != nil {
				t.Errorf("Reassign: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&store.maxActive); got != 1 {
		t.Fatalf("expected at most one concurrent run per press, saw %d", got)
	}
	if _, prios := store.order("X"); !slices.Equal(prios, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("expected dense queue, got %v", prios)
	}
	if locks.Len() != 0 {
		t.Fatalf("expected lock registry to drain, got %d entries", locks.Len())
	}
}

func TestCheckReportsDensity(t *testing.T) {
	store := newMemStore()
	store.add("a", "X", 1)
	store.add("b", "X", 3)
	store.add("c", "Y", 1)
	r := newReassigner(t, store, priority.Options{})

	reports, err := r.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected two reports, got %+v", reports)
	}
	if reports[0].Press != "X" || reports[0].Dense || !slices.Equal(reports[0].Priorities, []int{1, 3}) {
		t.Fatalf("unexpected report for X: %+v", reports[0])
	}
	if reports[1].Press != "Y" || !reports[1].Dense || reports[1].Queued != 1 {
		t.Fatalf("unexpected report for Y: %+v", reports[1])
	}
	if store.applies["X"] != 0 {
		t.Fatal("Check must not write")
	}
}

func TestNewReassignerRequiresStore(t *testing.T) {
	if _, err := priority.NewReassigner(priority.Options{}); err == nil {
		t.Fatal("expected error without store")
	}
}
