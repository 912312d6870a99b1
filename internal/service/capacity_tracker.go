package service

import (
	"container/list"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

// SeatOutcome is the result of a reservation attempt.
type SeatOutcome string

const (
	SeatReserved   SeatOutcome = "RESERVED"
	SeatWaitlisted SeatOutcome = "WAITLISTED"
)

// Reservation reports where a holder ended up. Position is set only when waitlisted;
// Repeat is set when the holder already had that place before the call.
type Reservation struct {
	Outcome  SeatOutcome
	Position int
	Repeat   bool
}

// WaitlistSlot is a queued holder and its 1-based position.
type WaitlistSlot struct {
	HolderID string
	Position int
}

// SectionSeats is a read-only view of one section.
type SectionSeats struct {
	SectionID string
	Capacity  int
	Enrolled  int
	Holders   []string
	Waitlist  []WaitlistSlot
}

// SeatsAvailable returns the free seat count.
func (s SectionSeats) SeatsAvailable() int {
	if s.Enrolled >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Enrolled
}

// sectionState is guarded by its own mutex. The waitlist is a single
// insertion-ordered map: the list keeps order, the index gives O(1) lookup.
type sectionState struct {
	mu       sync.Mutex
	capacity int
	holders  map[string]struct{}
	waitlist *list.List
	index    map[string]*list.Element
}

func newSectionState(capacity int) *sectionState {
	return &sectionState{
		capacity: capacity,
		holders:  make(map[string]struct{}),
		waitlist: list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (s *sectionState) position(holderID string) int {
	pos := 1
	for e := s.waitlist.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == holderID {
			return pos
		}
		pos++
	}
	return 0
}

func (s *sectionState) enqueue(holderID string) int {
	s.index[holderID] = s.waitlist.PushBack(holderID)
	return s.waitlist.Len()
}

func (s *sectionState) remove(holderID string) bool {
	e, ok := s.index[holderID]
	if !ok {
		return false
	}
	s.waitlist.Remove(e)
	delete(s.index, holderID)
	return true
}

// promote seats waitlisted holders while seats are free.
func (s *sectionState) promote() []string {
	var promoted []string
	for len(s.holders) < s.capacity && s.waitlist.Len() > 0 {
		head := s.waitlist.Front()
		holderID := head.Value.(string)
		s.waitlist.Remove(head)
		delete(s.index, holderID)
		s.holders[holderID] = struct{}{}
		promoted = append(promoted, holderID)
	}
	return promoted
}

func (s *sectionState) view(sectionID string) SectionSeats {
	holders := make([]string, 0, len(s.holders))
	for h := range s.holders {
		holders = append(holders, h)
	}
	sort.Strings(holders)
	slots := make([]WaitlistSlot, 0, s.waitlist.Len())
	pos := 1
	for e := s.waitlist.Front(); e != nil; e = e.Next() {
		slots = append(slots, WaitlistSlot{HolderID: e.Value.(string), Position: pos})
		pos++
	}
	return SectionSeats{SectionID: sectionID, Capacity: s.capacity, Enrolled: len(s.holders), Holders: holders, Waitlist: slots}
}

// SectionCapacityTracker owns seat counts and waitlist order for every section.
// Operations on one section are serialised; different sections never contend.
type SectionCapacityTracker struct {
	mu          sync.RWMutex
	sections    map[string]*sectionState
	maxWaitlist int
	logger      *zap.Logger
}

// NewSectionCapacityTracker builds a tracker. maxWaitlist <= 0 leaves waitlists unbounded.
func NewSectionCapacityTracker(maxWaitlist int, logger *zap.Logger) *SectionCapacityTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWaitlist < 0 {
		maxWaitlist = 0
	}
	return &SectionCapacityTracker{sections: make(map[string]*sectionState), maxWaitlist: maxWaitlist, logger: logger}
}

// Register adds a section with the given capacity. Registering a known section is a no-op.
func (t *SectionCapacityTracker) Register(sectionID string, capacity int) error {
	if sectionID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "section id is required")
	}
	if capacity < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "capacity cannot be negative")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sections[sectionID]; !ok {
		t.sections[sectionID] = newSectionState(capacity)
	}
	return nil
}

// Hydrate replaces a section's state with persisted holders and waitlist order.
// Queued holders that fit into free seats are promoted and returned.
func (t *SectionCapacityTracker) Hydrate(sectionID string, capacity int, holders []string, waitlist []string) ([]string, error) {
	if len(holders) > capacity {
		return nil, appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("section %s has %d holders for %d seats", sectionID, len(holders), capacity))
	}
	state := newSectionState(capacity)
	for _, h := range holders {
		state.holders[h] = struct{}{}
	}
	for _, w := range waitlist {
		if _, dup := state.index[w]; dup {
			return nil, appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("holder %s queued twice in section %s", w, sectionID))
		}
		if _, seated := state.holders[w]; seated {
			return nil, appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("holder %s both seated and queued in section %s", w, sectionID))
		}
		state.enqueue(w)
	}
	promoted := state.promote()
	t.mu.Lock()
	t.sections[sectionID] = state
	t.mu.Unlock()
	return promoted, nil
}

func (t *SectionCapacityTracker) section(sectionID string) (*sectionState, error) {
	t.mu.RLock()
	state, ok := t.sections[sectionID]
	t.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s is not tracked", sectionID))
	}
	return state, nil
}

// ReserveSeat seats the holder when a seat is free, otherwise appends it to the
// waitlist. Repeating the call for a seated or queued holder returns its current place.
func (t *SectionCapacityTracker) ReserveSeat(sectionID, holderID string) (Reservation, error) {
	state, err := t.section(sectionID)
	if err != nil {
		return Reservation{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, seated := state.holders[holderID]; seated {
		return Reservation{Outcome: SeatReserved, Repeat: true}, nil
	}
	if _, queued := state.index[holderID]; queued {
		return Reservation{Outcome: SeatWaitlisted, Position: state.position(holderID), Repeat: true}, nil
	}
	if len(state.holders) < state.capacity {
		state.holders[holderID] = struct{}{}
		return Reservation{Outcome: SeatReserved}, nil
	}
	if t.maxWaitlist > 0 && state.waitlist.Len() >= t.maxWaitlist {
		return Reservation{}, appErrors.Clone(appErrors.ErrWaitlistFull, fmt.Sprintf("waitlist of section %s is full", sectionID))
	}
	return Reservation{Outcome: SeatWaitlisted, Position: state.enqueue(holderID)}, nil
}

// TryReserveSeat seats the holder or fails with ErrCapacityExhausted; it never queues.
func (t *SectionCapacityTracker) TryReserveSeat(sectionID, holderID string) error {
	state, err := t.section(sectionID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, seated := state.holders[holderID]; seated {
		return nil
	}
	if len(state.holders) >= state.capacity {
		return appErrors.Clone(appErrors.ErrCapacityExhausted, fmt.Sprintf("section %s has no free seat", sectionID))
	}
	state.holders[holderID] = struct{}{}
	return nil
}

// ReleaseSeat frees the holder's seat. When the waitlist is not empty its head
// takes the seat and is returned as promoted.
func (t *SectionCapacityTracker) ReleaseSeat(sectionID, holderID string) (string, bool, error) {
	state, err := t.section(sectionID)
	if err != nil {
		return "", false, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, seated := state.holders[holderID]; !seated {
		return "", false, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("holder %s has no seat in section %s", holderID, sectionID))
	}
	delete(state.holders, holderID)
	promoted := state.promote()
	if len(promoted) == 0 {
		return "", false, nil
	}
	t.logger.Debug("waitlist head promoted", zap.String("section_id", sectionID), zap.String("holder_id", promoted[0]))
	return promoted[0], true, nil
}

// Withdraw removes a queued holder; the positions behind it close up.
func (t *SectionCapacityTracker) Withdraw(sectionID, holderID string) error {
	state, err := t.section(sectionID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.remove(holderID) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("holder %s is not queued in section %s", holderID, sectionID))
	}
	return nil
}

// SetCapacity changes the seat limit. Raising it promotes from the waitlist head;
// lowering it below the seated count is rejected.
func (t *SectionCapacityTracker) SetCapacity(sectionID string, capacity int) ([]string, error) {
	if capacity < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity cannot be negative")
	}
	state, err := t.section(sectionID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if capacity < len(state.holders) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("section %s already seats %d students", sectionID, len(state.holders)))
	}
	state.capacity = capacity
	return state.promote(), nil
}

// Snapshot returns a consistent view of one section.
func (t *SectionCapacityTracker) Snapshot(sectionID string) (SectionSeats, error) {
	state, err := t.section(sectionID)
	if err != nil {
		return SectionSeats{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.view(sectionID), nil
}

// Waitlist returns the queued holders of a section in order.
func (t *SectionCapacityTracker) Waitlist(sectionID string) ([]WaitlistSlot, error) {
	view, err := t.Snapshot(sectionID)
	if err != nil {
		return nil, err
	}
	return view.Waitlist, nil
}

// HasFreeSeat reports whether a reservation would be seated right now.
func (t *SectionCapacityTracker) HasFreeSeat(sectionID string) bool {
	state, err := t.section(sectionID)
	if err != nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return len(state.holders) < state.capacity
}

// Accepting reports whether a reservation would be seated or queued right now.
func (t *SectionCapacityTracker) Accepting(sectionID string) bool {
	state, err := t.section(sectionID)
	if err != nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if len(state.holders) < state.capacity {
		return true
	}
	return t.maxWaitlist == 0 || state.waitlist.Len() < t.maxWaitlist
}
