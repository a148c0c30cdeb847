/*
Package specagent wires the engineering-data chat assistant together: a triage
agent that routes user questions to a BOM analysis agent (stateful Python
notebook over the bill-of-materials table) or a specbook retrieval agent
(relevance search over technical specification documents).

The heavy lifting lives in the subpackages:

  - guardrail: static suspicious-code analysis for submitted Python
  - notebook: the sandboxed, stateful Python interpreter
  - stream: per-session result streaming to the client
  - sessions: session registry and transcript persistence
  - agent, tools: the agent run loop and its callable capabilities

This package contributes the concrete assistant: the three agent personas,
their prompts, and the glue that binds tools to sessions.
*/
package specagent
