package coordinator

import (
	"fmt"

	"github.com/absmach/flparticipant/pkg/fl"
)

type sessionState struct {
	ParticipantID string          `cbor:"participant_id"`
	Params        *fl.RoundParams `cbor:"params,omitempty"`
	Submitted     bool            `cbor:"submitted"`
	Rejected      bool            `cbor:"rejected"`
	Pending       *fl.LocalUpdate `cbor:"pending,omitempty"`
	PendingRound  uint64          `cbor:"pending_round"`
}

// Save serialises the session so a later run can resume it with New.
func (c *Client) Save() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return fl.Encode(sessionState{
		ParticipantID: c.id,
		Params:        c.params,
		Submitted:     c.submitted,
		Rejected:      c.rejected,
		Pending:       c.pending,
		PendingRound:  c.pendingRound,
	})
}

func (c *Client) restore(data []byte) error {
	var st sessionState
	if err := fl.Decode(data, &st); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if st.ParticipantID != "" && st.ParticipantID != c.id {
		return fmt.Errorf("%w: saved for participant %q", ErrInvalidState, st.ParticipantID)
	}

	c.params = st.Params
	c.submitted = st.Submitted
	c.rejected = st.Rejected
	c.pending = st.Pending
	c.pendingRound = st.PendingRound

	return nil
}

// SessionInfo is a readable view of a saved session.
type SessionInfo struct {
	ParticipantID string          `json:"participant_id"`
	Params        *fl.RoundParams `json:"params,omitempty"`
	Submitted     bool            `json:"submitted"`
	Rejected      bool            `json:"rejected"`
	PendingRound  uint64          `json:"pending_round,omitempty"`
	PendingLength int             `json:"pending_length,omitempty"`
}

// Inspect decodes state produced by Save without resuming a session.
func Inspect(data []byte) (SessionInfo, error) {
	var st sessionState
	if err := fl.Decode(data, &st); err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	info := SessionInfo{
		ParticipantID: st.ParticipantID,
		Params:        st.Params,
		Submitted:     st.Submitted,
		Rejected:      st.Rejected,
	}
	if st.Pending != nil {
		info.PendingRound = st.PendingRound
		info.PendingLength = st.Pending.Len()
	}

	return info, nil
}
