package poller

// Tracker assigns request identifiers and keeps the set of requests that
// have been dispatched but have not completed.
//
// Tracker is not safe for concurrent use. The owning stream serializes all
// calls behind its own lock, which also keeps change notifications ordered
// with the outcome events that follow them.
type Tracker struct {
	lastID   uint64
	inFlight map[uint64]struct{}
	onChange func(pending int)
}

// NewTracker creates an empty [Tracker]. onChange, if non-nil, is called
// with the new pending count after every Register and after every
// Deregister of an in-flight id.
func NewTracker(onChange func(pending int)) *Tracker {
	return &Tracker{
		inFlight: make(map[uint64]struct{}),
		onChange: onChange,
	}
}

// NextID returns a fresh identifier, strictly greater than every identifier
// previously returned by this tracker. The first identifier is 1.
func (t *Tracker) NextID() uint64 {
	t.lastID++
	return t.lastID
}

// Register marks id as in flight.
func (t *Tracker) Register(id uint64) {
	t.inFlight[id] = struct{}{}
	t.notify()
}

// Deregister marks id as complete. Unknown ids are ignored and produce no
// notification, so the pending count can never go negative.
func (t *Tracker) Deregister(id uint64) {
	if _, ok := t.inFlight[id]; !ok {
		return
	}
	delete(t.inFlight, id)
	t.notify()
}

// Pending returns the number of in-flight requests.
func (t *Tracker) Pending() int {
	return len(t.inFlight)
}

// InFlight reports whether id has been registered and not yet deregistered.
func (t *Tracker) InFlight(id uint64) bool {
	_, ok := t.inFlight[id]
	return ok
}

func (t *Tracker) notify() {
	if t.onChange != nil {
		t.onChange(len(t.inFlight))
	}
}
