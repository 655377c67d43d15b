package participant

import "time"

// Status is a point-in-time snapshot of the loop, safe to read while a step
// is running.
type Status struct {
	ID             string        `json:"id"`
	Running        bool          `json:"running"`
	ExitRequested  bool          `json:"exit_requested"`
	FetchError     bool          `json:"fetch_error"`
	HasGlobalModel bool          `json:"has_global_model"`
	Steps          uint64        `json:"steps"`
	Fetches        uint64        `json:"fetches"`
	Trainings      uint64        `json:"trainings"`
	Submissions    uint64        `json:"submissions"`
	LastInterval   time.Duration `json:"last_interval"`
	LastStepAt     time.Time     `json:"last_step_at,omitempty"`
	Error          string        `json:"error,omitempty"`
}

func (p *Participant[M]) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()

	st := p.status
	st.ExitRequested = p.exit.IsSet()

	return st
}

func (p *Participant[M]) setRunning() {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	p.status.Running = true
}

// stepReport is filled by a step and published once the step is over.
type stepReport struct {
	fetched   bool
	trained   bool
	submitted bool
	interval  time.Duration
}

func (p *Participant[M]) publish(r stepReport) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	p.status.Steps++
	if r.fetched {
		p.status.Fetches++
	}
	if r.trained {
		p.status.Trainings++
	}
	if r.submitted {
		p.status.Submissions++
	}
	p.status.FetchError = p.fetchErr
	p.status.HasGlobalModel = p.global != nil
	p.status.LastInterval = r.interval
	p.status.LastStepAt = time.Now().UTC()
}
