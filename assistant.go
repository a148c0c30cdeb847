package specagent

import (
	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/tools"
)

// Agent names, also used as sender tags on streamed output.
const (
	TriageAgentName   = "Triage Agent"
	BOMAgentName      = "BOM Agent"
	SpecbookAgentName = "Specbook Agent"
)

// DefaultModel drives all three personas.
const DefaultModel = "gpt-4.1"

// NewAssistant builds the agent graph: a triage agent that hands off to the
// BOM analysis agent and the specbook retrieval agent. The returned agent is
// the conversation entry point and is safe to share across sessions.
func NewAssistant(specbooks *tools.SpecbookTools) (*agent.Agent, error) {
	bomAgent, err := agent.New(
		agent.Name(BOMAgentName),
		agent.Model(DefaultModel),
		agent.Instructions(bomPrompt),
		agent.Tools(tools.CodeInterpreter()),
	)
	if err != nil {
		return nil, err
	}

	specbookAgent, err := agent.New(
		agent.Name(SpecbookAgentName),
		agent.Model(DefaultModel),
		agent.Instructions(specbookPrompt),
		agent.Tools(
			specbooks.RelevantContentByQuery(),
			specbooks.ContentByNumbers(),
			specbooks.NumbersTable(),
		),
	)
	if err != nil {
		return nil, err
	}

	return agent.New(
		agent.Name(TriageAgentName),
		agent.Model(DefaultModel),
		agent.Instructions(triagePrompt),
		agent.Handoffs(bomAgent, specbookAgent),
	)
}
