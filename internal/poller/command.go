package poller

import (
	"context"
	"fmt"
	"strings"

	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/voldisp"
)

const (
	ActionReinit  = "reinit"
	ActionRefresh = "refresh"
	ActionWake    = "wake"
)

var (
	_ voldisp.CommandSubscriber = (*SpeakerPoller)(nil)
	_ voldisp.CommandPusher     = (*SpeakerPoller)(nil)
)

// OnCommand validates a remote command and queues it for the loop goroutine.
func (p *SpeakerPoller) OnCommand(ctx context.Context, command voldisp.IncomingCommand) error {
	action := strings.ToLower(strings.TrimSpace(command.Action))
	switch action {
	case ActionReinit, ActionRefresh, ActionWake:
	default:
		return fmt.Errorf("unknown action: %q", command.Action)
	}
	logging.Debug("Received command", "id", command.ID, "action", action)
	command.Action = action
	if !p.PushCommand(command) {
		return fmt.Errorf("command buffer full, dropped %s", action)
	}
	return nil
}

func (p *SpeakerPoller) PushCommand(cmd voldisp.IncomingCommand) bool {
	if p.cmdCh == nil {
		return false
	}
	select {
	case p.cmdCh <- cmd:
		return true
	default:
		return false
	}
}

func (p *SpeakerPoller) handleCommand(ctx context.Context, c voldisp.IncomingCommand) error {
	switch c.Action {
	case ActionReinit:
		// picked up by the next tick with button priority
		p.st.reinitPending = true
	case ActionRefresh:
		if p.st.Mode.Kind == 0 {
			return nil
		}
		return p.render(p.st.Mode)
	case ActionWake:
		p.st.Timers.LastChange = p.deps.Clock.Now()
		return p.deps.Brightness.SetImmediate(p.deps.Brightness.Bright())
	default:
		logging.Warn("Unknown command action", "action", c.Action)
	}
	return nil
}

// DrainCommands applies every queued command without waiting.
func (p *SpeakerPoller) DrainCommands(ctx context.Context) error {
	for {
		select {
		case c := <-p.cmdCh:
			if err := p.handleCommand(ctx, c); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
