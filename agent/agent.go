// Package agent defines the chat agents and the run loop that drives them.
// An agent is a named model configuration with instructions, tools, and
// optional handoff targets; the runner owns the conversation with the LLM.
package agent

import (
	"fmt"
	"strings"

	"github.com/fogfish/opts"
)

// Agent is one assistant persona. Agents are immutable after construction
// and safe to share across sessions.
type Agent struct {
	name         string
	model        string
	instructions string
	tools        []Tool
	handoffs     []*Agent
}

var (
	// Name sets the agent's identity, used as the sender tag on streamed output.
	Name = opts.ForName[Agent, string]("name")
	// Model overrides the completion model.
	Model = opts.ForName[Agent, string]("model")
	// Instructions sets the system prompt.
	Instructions = opts.ForName[Agent, string]("instructions")
)

// Tools appends callable tools.
func Tools(tool Tool, extra ...Tool) opts.Option[Agent] {
	return opts.Type[Agent](func(a *Agent) error {
		a.tools = append(a.tools, tool)
		a.tools = append(a.tools, extra...)
		return nil
	})
}

// Handoffs appends agents this agent may transfer the conversation to.
func Handoffs(target *Agent, extra ...*Agent) opts.Option[Agent] {
	return opts.Type[Agent](func(a *Agent) error {
		a.handoffs = append(a.handoffs, target)
		a.handoffs = append(a.handoffs, extra...)
		return nil
	})
}

// New builds an agent. A name is required; the model defaults to gpt-4o-mini.
func New(options ...opts.Option[Agent]) (*Agent, error) {
	agent := &Agent{model: "gpt-4o-mini"}
	if err := opts.Apply(agent, options); err != nil {
		return nil, err
	}
	if agent.name == "" {
		return nil, fmt.Errorf("agent: name is required")
	}
	return agent, nil
}

// Name returns the agent's identity.
func (a *Agent) Name() string { return a.name }

// Instructions returns the system prompt.
func (a *Agent) Instructions() string { return a.instructions }

// handoffToolName is the function name the model calls to transfer the
// conversation to another agent. Agent names may contain spaces; tool names
// must match [a-zA-Z0-9_-], so the name is normalized.
func handoffToolName(target *Agent) string {
	normalized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, target.name)
	return "transfer_to_" + normalized
}

func (a *Agent) findTool(name string) (Tool, bool) {
	for _, t := range a.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

func (a *Agent) findHandoff(name string) (*Agent, bool) {
	for _, h := range a.handoffs {
		if handoffToolName(h) == name {
			return h, true
		}
	}
	return nil, false
}
