package sink

import "sync"

// Recorder keeps everything in memory. Tests and the scenario harness
// inspect it after a run.
type Recorder struct {
	mu       sync.Mutex
	info     *RunInfo
	records  []Record
	events   []Event
	firings  []Firing
	summary  *Summary
	abortErr error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Open(info RunInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = &info
	return nil
}

func (r *Recorder) Log(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *Recorder) Event(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Fired(f Firing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, f)
	return nil
}

func (r *Recorder) Finish(s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &s
	return nil
}

func (r *Recorder) Abort(cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortErr = cause
	return nil
}

// Info returns the RunInfo passed to Open, or nil.
func (r *Recorder) Info() *RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// Records returns a copy of the log records.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Events returns a copy of the events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Firings returns a copy of the firings.
func (r *Recorder) Firings() []Firing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Firing(nil), r.firings...)
}

// Summary returns the summary passed to Finish, or nil.
func (r *Recorder) Summary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Aborted returns the cause passed to Abort, or nil.
func (r *Recorder) Aborted() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abortErr
}
