package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/notebook"
	"github.com/kawashishu/spec-agent/pkg/slogx"
	"github.com/kawashishu/spec-agent/stream"
)

// Specbook is one technical specification document.
type Specbook struct {
	Number  string
	Content string
}

// Corpus is the in-memory specbook collection, loaded once at startup and
// read-only afterwards.
type Corpus struct {
	books   map[string]Specbook
	numbers []string
}

// NewCorpus builds a corpus. Iteration order is by ascending number.
func NewCorpus(books []Specbook) *Corpus {
	c := &Corpus{books: make(map[string]Specbook, len(books))}
	for _, b := range books {
		if _, dup := c.books[b.Number]; !dup {
			c.numbers = append(c.numbers, b.Number)
		}
		c.books[b.Number] = b
	}
	sort.Strings(c.numbers)
	return c
}

// Len returns the number of specbooks.
func (c *Corpus) Len() int { return len(c.numbers) }

// Numbers returns the specbook numbers in order.
func (c *Corpus) Numbers() []string {
	out := make([]string, len(c.numbers))
	copy(out, c.numbers)
	return out
}

// Get returns the specbook with the given number.
func (c *Corpus) Get(number string) (Specbook, bool) {
	b, ok := c.books[number]
	return b, ok
}

// RelevanceOutcome is the structured classification for one specbook. A
// failed or timed-out classification is represented as a not-relevant
// outcome, never as an error: one slow document must not abort the batch.
type RelevanceOutcome struct {
	Reasoning        string `json:"reasoning"`
	RelevanceContent string `json:"relevance_content"`
	IsRelevant       bool   `json:"is_relevant"`
}

// JSONCompleter is the slice of the LLM client the classifier needs.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, params openai.ChatCompletionNewParams, out any) error
}

const (
	defaultClassifyConcurrency = 8
	defaultPerBookTimeout      = 60 * time.Second
	defaultRelevanceTokens     = 5_000_000
	classifierModel            = "gpt-4o-mini"
)

// SpecbookTools bundles the retrieval tools over one corpus.
type SpecbookTools struct {
	llm    JSONCompleter
	corpus *Corpus

	concurrency    int
	perBookTimeout time.Duration
	tokenBudget    int
}

// NewSpecbookTools builds the toolset with default concurrency and timeout.
func NewSpecbookTools(llm JSONCompleter, corpus *Corpus) *SpecbookTools {
	return &SpecbookTools{
		llm:            llm,
		corpus:         corpus,
		concurrency:    defaultClassifyConcurrency,
		perBookTimeout: defaultPerBookTimeout,
		tokenBudget:    defaultRelevanceTokens,
	}
}

// RelevantContentByQuery is the broad-search tool: it classifies every
// specbook against the query and aggregates the relevant extracts.
func (st *SpecbookTools) RelevantContentByQuery() agent.Tool {
	return agent.Tool{
		Name: "get_relevant_specbook_content_by_query",
		Description: "Search all specbooks for content relevant to the query and return " +
			"it as XML, each hit wrapped in <Specbook> tags with its specbook number.",
		Parameters: agent.ObjectSchema(agent.Param{
			Name:        "query",
			Type:        "string",
			Description: "Complete, explicit description of the information to retrieve, in English.",
			Required:    true,
		}),
		Fn: func(ctx context.Context, rc *agent.RunContext, args gjson.Result) (string, error) {
			query := args.Get("query").String()
			slog.Info("tool: specbook relevance search", slogx.Session(rc.Session.ID),
				slog.String("query", query))
			outcomes := st.classifyAll(ctx, query)
			return st.aggregate(outcomes), nil
		},
	}
}

// ContentByNumbers returns the full content of the named specbooks.
func (st *SpecbookTools) ContentByNumbers() agent.Tool {
	return agent.Tool{
		Name: "get_specbook_content_by_specbook_numbers",
		Description: "Return the full content of the specbooks with the given numbers, " +
			"each wrapped in <Specbook> tags.",
		Parameters: agent.ObjectSchema(agent.Param{
			Name:        "specbook_numbers",
			Type:        "array",
			Description: "The specbook numbers to fetch.",
			Required:    true,
		}),
		Fn: func(_ context.Context, _ *agent.RunContext, args gjson.Result) (string, error) {
			var parts []string
			for _, num := range args.Get("specbook_numbers").Array() {
				book, ok := st.corpus.Get(num.String())
				if !ok {
					book = Specbook{Number: num.String(), Content: "Specbook number not found"}
				}
				parts = append(parts, renderSpecbook(book.Number, book.Content))
			}
			return strings.Join(parts, "\n"), nil
		},
	}
}

// NumbersTable streams the table of available specbook numbers to the user
// and returns it as text for the model.
func (st *SpecbookTools) NumbersTable() agent.Tool {
	return agent.Tool{
		Name:        "get_specbook_numbers_table",
		Description: "Show the user the table of available specbook numbers.",
		Parameters:  agent.ObjectSchema(),
		Fn: func(ctx context.Context, rc *agent.RunContext, _ gjson.Result) (string, error) {
			numbers := st.corpus.Numbers()
			rows := make([][]any, len(numbers))
			for i, n := range numbers {
				rows[i] = []any{n}
			}
			table := notebook.Table{Columns: []string{"specbook_number"}, Data: rows}
			if err := rc.Sink.Write(ctx, stream.Serialize(table, "")); err != nil {
				slog.Warn("numbers table forwarding failed",
					slogx.Session(rc.Session.ID), slogx.Error(err))
			}
			return strings.Join(numbers, "\n"), nil
		},
	}
}

// classifyAll runs the relevance classifier over every specbook with a
// bounded-concurrency gate and a per-book timeout. Results come back in
// corpus order.
func (st *SpecbookTools) classifyAll(ctx context.Context, query string) []RelevanceOutcome {
	numbers := st.corpus.Numbers()
	outcomes := make([]RelevanceOutcome, len(numbers))

	gate := make(chan struct{}, st.concurrency)
	var wg sync.WaitGroup
	for i, num := range numbers {
		wg.Add(1)
		go func(i int, num string) {
			defer wg.Done()
			gate <- struct{}{}
			defer func() { <-gate }()

			book, _ := st.corpus.Get(num)
			outcomes[i] = st.classifyOne(ctx, query, book)
		}(i, num)
	}
	wg.Wait()
	return outcomes
}

func (st *SpecbookTools) classifyOne(ctx context.Context, query string, book Specbook) RelevanceOutcome {
	ctx, cancel := context.WithTimeout(ctx, st.perBookTimeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.F(classifierModel),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(relevancePrompt, query)),
			openai.UserMessage(book.Content),
		}),
	}

	var outcome RelevanceOutcome
	if err := st.llm.CompleteJSON(ctx, params, &outcome); err != nil {
		slog.Warn("specbook classification degraded to not-relevant",
			slog.String("specbook", book.Number), slogx.Error(err))
		return RelevanceOutcome{Reasoning: "LIMIT TOKEN / TIMEOUT"}
	}
	return outcome
}

// aggregate collects the relevant extracts in corpus order until the token
// budget is spent.
func (st *SpecbookTools) aggregate(outcomes []RelevanceOutcome) string {
	numbers := st.corpus.Numbers()
	var sb strings.Builder
	count := 0
	for i, outcome := range outcomes {
		if !outcome.IsRelevant {
			continue
		}
		entry := renderSpecbook(numbers[i], outcome.RelevanceContent)
		if estimateTokens(sb.String())+estimateTokens(entry) > st.tokenBudget {
			break
		}
		sb.WriteString(entry)
		count++
	}
	slog.Info("specbook aggregation",
		slog.Int("relevant", count),
		slog.Int("total", len(outcomes)),
		slog.Int("tokens", estimateTokens(sb.String())))
	return sb.String()
}

func renderSpecbook(number, content string) string {
	return fmt.Sprintf(`
<Specbook>
    <SpecbookNumber>%s</SpecbookNumber>
    <Content><![CDATA[
    %s
    ]]></Content>
</Specbook>
`, number, content)
}

// estimateTokens approximates the token count of s. English prose averages
// about four characters per token, which is close enough for a budget check.
func estimateTokens(s string) int {
	return len(s) / 4
}
