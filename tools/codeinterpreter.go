// Package tools implements the callable capabilities of the agents: sandboxed
// Python execution, specbook retrieval, and the BOM data bootstrap.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/pkg/slogx"
	"github.com/kawashishu/spec-agent/stream"
)

// CodeInterpreter builds the code-execution tool. The notebook and stream
// sink come from the run context at call time, so one tool value serves every
// session.
//
// The returned string is the captured console output; rich result values
// (dataframes, figures, images) are forwarded to the session stream instead
// and never appear in the text the model sees.
func CodeInterpreter() agent.Tool {
	return agent.Tool{
		Name: "code_interpreter",
		Description: "Execute Python code in a stateful Jupyter notebook environment and " +
			"return the console output. Variables persist between calls. Internet access " +
			"is disabled: do not make external web requests or API calls, they will fail. " +
			"Place an object on the last line of the cell to display it to the user.",
		Parameters: agent.ObjectSchema(agent.Param{
			Name:        "python_code",
			Type:        "string",
			Description: "The Python code to execute.",
			Required:    true,
		}),
		Fn: runCell,
	}
}

func runCell(ctx context.Context, rc *agent.RunContext, args gjson.Result) (string, error) {
	code := args.Get("python_code").String()
	slog.Info("tool: code_interpreter", slogx.Session(rc.Session.ID),
		slog.Int("source_len", len(code)))

	output, err := rc.Session.Notebook.Exec(ctx, code)
	if err != nil {
		// Policy violations and worker failures surface to the model as a
		// descriptive string, never as an error that could end the run.
		slog.Error("code execution rejected", slogx.Session(rc.Session.ID), slogx.Error(err))
		return fmt.Sprintf("Error executing Python code: %s", err), nil
	}

	for _, value := range output.Results {
		if werr := rc.Sink.Write(ctx, stream.Serialize(value, "")); werr != nil {
			slog.Warn("result forwarding failed", slogx.Session(rc.Session.ID), slogx.Error(werr))
		}
	}
	return output.Console, nil
}
