// Command spec-repl runs the assistant as a terminal conversation, mostly
// for prompt and tool debugging without the HTTP layer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	specagent "github.com/kawashishu/spec-agent"
	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/internal/llm"
	"github.com/kawashishu/spec-agent/pkg/slogx"
	"github.com/kawashishu/spec-agent/pkg/stdx"
	"github.com/kawashishu/spec-agent/pkg/uuidx"
	"github.com/kawashishu/spec-agent/sessions"
	"github.com/kawashishu/spec-agent/stream"
	"github.com/kawashishu/spec-agent/tools"
)

var glam *glamour.TermRenderer

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelWarn}),
	))

	glam = stdx.Must1(glamour.NewTermRenderer(glamour.WithAutoStyle()))
}

func main() {
	debug := pflag.Bool("debug", false, "pretty-print raw stream messages")
	pflag.Parse()

	if err := run(context.Background(), *debug); err != nil {
		slog.Error("spec-repl failed", slogx.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, debug bool) error {
	client := llm.New()
	root, err := specagent.NewAssistant(tools.NewSpecbookTools(client, tools.NewCorpus(nil)))
	if err != nil {
		return err
	}
	runner := agent.NewRunner(client)

	store, err := sessions.NewStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.GetOrCreate(uuidx.NewString(), os.Getenv("USER"))
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s: ", color.CyanString("User"))
		if !scanner.Scan() {
			fmt.Println("Exiting...")
			return scanner.Err()
		}
		input := scanner.Text()
		if strings.EqualFold(input, "exit") {
			return nil
		}

		sess.Lock()
		sess.Append(sessions.Turn{Role: "user", Content: input})
		turns := sess.Turns()
		buffer := stream.NewBuffer()
		sess.Buffer = buffer

		go func() {
			defer sess.Unlock()
			defer buffer.Close()

			rc := &agent.RunContext{Session: sess, Sink: buffer}
			final, err := runner.Run(ctx, rc, root, turns)
			if err != nil {
				_ = buffer.Write(ctx, stream.Text("ERROR: "+err.Error()).WithSender("system"))
				return
			}
			sess.Append(sessions.Turn{Role: "assistant", Content: final})
		}()

		render(ctx, buffer, debug)
	}
}

// render prints the session stream: text deltas accumulate and re-render as
// markdown at end of stream, rich results get a short terminal notice.
func render(ctx context.Context, buffer *stream.Buffer, debug bool) {
	var text strings.Builder
	var sender string
	for msg := range buffer.Stream(ctx) {
		if debug && msg.Kind != stream.KindText {
			pp.Println(msg)
		}
		switch msg.Kind {
		case stream.KindText:
			if msg.Sender != "" && msg.Sender != sender {
				sender = msg.Sender
				fmt.Printf("\n%s: ", color.MagentaString(sender))
			}
			fmt.Print(msg.Data)
			text.WriteString(msg.Data)
		case stream.KindDataFrame:
			fmt.Printf("\n%s\n", color.YellowString("[dataframe shown to user]"))
		case stream.KindImagePNG:
			fmt.Printf("\n%s\n", color.YellowString("[figure shown to user, %d bytes]", len(msg.B64)))
		case stream.KindEndStream:
			if out, err := glam.Render(text.String()); err == nil && strings.TrimSpace(out) != "" {
				fmt.Println()
				fmt.Print(out)
			}
		}
	}
	fmt.Println()
}
