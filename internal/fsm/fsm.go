package fsm

import (
	"context"
	"fmt"
)

// Run drives a Node from Q1 through to EXIT, dispatching each state to its
// handler in turn. A cancelled context does not stop the loop immediately —
// it is only observed at the bottom of Q6, which routes the node through
// the leave sequence (Q10 onward) instead of abandoning the ring mid-step.
func Run(ctx context.Context, n *Node) error {
	state := Q1
	for state != StateExit {
		h, ok := handlers[state]
		if !ok {
			return fmt.Errorf("fsm: no handler registered for state %d", state)
		}

		next, err := h(ctx, n)
		if err != nil {
			return fmt.Errorf("fsm: state %d: %w", state, err)
		}
		if n.Logger != nil {
			n.Logger.Debug("state transition", "from", state, "to", next)
		}
		state = next
	}
	return nil
}

// RequestClose marks the node for a graceful leave at the next Q6
// iteration, used by the process's signal handler.
func (n *Node) RequestClose() {
	n.shouldClose = true
}
