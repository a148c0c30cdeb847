package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/pkg/jsonx"
	"github.com/kawashishu/spec-agent/pkg/slogx"
	"github.com/kawashishu/spec-agent/sessions"
	"github.com/kawashishu/spec-agent/stream"
)

// ErrMaxTurns is returned when a single user turn exceeds the tool-call
// budget without producing a final answer.
var ErrMaxTurns = errors.New("agent: max turns exceeded")

// defaultMaxTurns bounds tool-call round trips within one user turn.
const defaultMaxTurns = 10

// Completer is the slice of the LLM client the runner needs. Deltas of the
// assistant's text stream through onDelta as they arrive.
type Completer interface {
	Stream(ctx context.Context, params openai.ChatCompletionNewParams, onDelta func(string)) (*openai.ChatCompletion, error)
}

// Runner drives one agent conversation turn: it streams assistant text to
// the session buffer, dispatches tool calls, and follows handoffs between
// agents.
type Runner struct {
	llm      Completer
	maxTurns int
}

// NewRunner builds a runner on the given completion client.
func NewRunner(llm Completer) *Runner {
	return &Runner{llm: llm, maxTurns: defaultMaxTurns}
}

// Run executes one user turn against the root agent and returns the
// assistant's final text. Text deltas are streamed to rc.Sink tagged with
// the currently active agent; handoffs switch the active agent mid-run.
// The caller owns the session lock and the buffer lifecycle.
func (r *Runner) Run(ctx context.Context, rc *RunContext, root *Agent, turns []sessions.Turn) (string, error) {
	current := root
	history := historyToMessages(turns)

	for turn := 0; turn < r.maxTurns; turn++ {
		params, err := r.buildParams(current, history)
		if err != nil {
			return "", err
		}

		sender := current.name
		completion, err := r.llm.Stream(ctx, params, func(delta string) {
			if werr := rc.Sink.Write(ctx, stream.Text(delta).WithSender(sender)); werr != nil {
				slog.Warn("stream write failed", slogx.Session(rc.Session.ID), slogx.Error(werr))
			}
		})
		if err != nil {
			return "", err
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("agent: empty completion")
		}

		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		history = append(history, toolCallParam(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			result, next := r.dispatch(ctx, rc, current, call)
			history = append(history, openai.ToolMessage(call.ID, result))
			if next != nil {
				current = next
			}
		}
	}
	return "", ErrMaxTurns
}

// dispatch runs one tool call and returns the textual result for the model,
// plus the next active agent when the call was a handoff. Tool failures are
// reported to the model as text, never raised: a broken tool call must not
// end the conversation.
func (r *Runner) dispatch(ctx context.Context, rc *RunContext, current *Agent, call openai.ChatCompletionMessageToolCall) (string, *Agent) {
	name := call.Function.Name

	if target, ok := current.findHandoff(name); ok {
		slog.Info("agent handoff",
			slogx.Session(rc.Session.ID),
			slogx.Agent(current.name),
			slog.String("target", target.name))
		return fmt.Sprintf("Transferred to %s.", target.name), target
	}

	tool, ok := current.findTool(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool '%s'", name), nil
	}

	result, err := tool.Fn(ctx, rc, gjson.Parse(call.Function.Arguments))
	if err != nil {
		slog.Warn("tool call failed",
			slogx.Session(rc.Session.ID),
			slog.String("tool", name),
			slogx.Error(err))
		return fmt.Sprintf("Error: %s", err), nil
	}
	return result, nil
}

func (r *Runner) buildParams(a *Agent, history []openai.ChatCompletionMessageParamUnion) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	msgs = append(msgs, openai.SystemMessage(a.instructions))
	msgs = append(msgs, history...)

	var tools []openai.ChatCompletionToolParam
	for _, t := range a.tools {
		jv, err := jsonx.ToDynamicJSON(t.Parameters)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("agent: tool %s schema: %w", t.Name, err)
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.String(t.Name),
				Description: openai.String(t.Description),
				Parameters:  openai.F(shared.FunctionParameters(jv)),
			}),
		})
	}
	for _, h := range a.handoffs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.String(handoffToolName(h)),
				Description: openai.String(fmt.Sprintf("Hand the conversation to the %s agent.", h.name)),
				Parameters:  openai.F(shared.FunctionParameters(map[string]any{"type": "object", "properties": map[string]any{}})),
			}),
		})
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(msgs),
		Model:       openai.F(a.model),
		N:           openai.Int(1),
		Temperature: openai.Float(0.1),
	}
	if len(tools) > 0 {
		params.Tools = openai.F(tools)
		params.ParallelToolCalls = openai.Bool(false)
	}
	return params, nil
}

// historyToMessages converts persisted role/content turns back into API
// messages. Tool-call detail inside past turns is not persisted, only the
// user-visible text.
func historyToMessages(turns []sessions.Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "assistant":
			out = append(out, openai.AssistantMessage(t.Content))
		default:
			out = append(out, openai.UserMessage(t.Content))
		}
	}
	return out
}

func toolCallParam(calls []openai.ChatCompletionMessageToolCall) openai.ChatCompletionMessageParamUnion {
	tcd := make([]openai.ChatCompletionMessageToolCallParam, len(calls))
	for i, call := range calls {
		tcd[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   openai.String(call.ID),
			Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
			Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      openai.String(call.Function.Name),
				Arguments: openai.String(call.Function.Arguments),
			}),
		}
	}
	return openai.ChatCompletionMessageParam{
		Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
		ToolCalls: openai.F[any](tcd),
	}
}
