package api

import (
	"net/http"
	"time"

	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/supermq"
)

var _ supermq.Response = (*statusRes)(nil)

type statusRes struct {
	ID             string `json:"id"`
	Running        bool   `json:"running"`
	ExitRequested  bool   `json:"exit_requested"`
	FetchError     bool   `json:"fetch_error"`
	HasGlobalModel bool   `json:"has_global_model"`
	Steps          uint64 `json:"steps"`
	Fetches        uint64 `json:"fetches"`
	Trainings      uint64 `json:"trainings"`
	Submissions    uint64 `json:"submissions"`
	LastInterval   string `json:"last_interval,omitempty"`
	LastStepAt     string `json:"last_step_at,omitempty"`
	Error          string `json:"error,omitempty"`
	stopped        bool
}

func newStatusRes(st participant.Status, stopped bool) statusRes {
	res := statusRes{
		ID:             st.ID,
		Running:        st.Running,
		ExitRequested:  st.ExitRequested,
		FetchError:     st.FetchError,
		HasGlobalModel: st.HasGlobalModel,
		Steps:          st.Steps,
		Fetches:        st.Fetches,
		Trainings:      st.Trainings,
		Submissions:    st.Submissions,
		Error:          st.Error,
		stopped:        stopped,
	}
	if st.LastInterval > 0 {
		res.LastInterval = st.LastInterval.String()
	}
	if !st.LastStepAt.IsZero() {
		res.LastStepAt = st.LastStepAt.Format(time.RFC3339Nano)
	}

	return res
}

func (res statusRes) Code() int {
	if res.stopped {
		return http.StatusAccepted
	}

	return http.StatusOK
}

func (res statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (res statusRes) Empty() bool {
	return false
}
