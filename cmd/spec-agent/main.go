// Command spec-agent serves the engineering-data chat assistant over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Ensure API key and NATS settings are loaded from .env.
	_ "github.com/joho/godotenv/autoload"

	"github.com/fogfish/opts"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	specagent "github.com/kawashishu/spec-agent"
	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/internal/llm"
	"github.com/kawashishu/spec-agent/notebook"
	"github.com/kawashishu/spec-agent/pkg/natsx"
	"github.com/kawashishu/spec-agent/pkg/slogx"
	"github.com/kawashishu/spec-agent/server"
	"github.com/kawashishu/spec-agent/sessions"
	"github.com/kawashishu/spec-agent/stream"
	"github.com/kawashishu/spec-agent/tools"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

func main() {
	var (
		addr          = pflag.String("addr", ":9000", "listen address")
		specbookDir   = pflag.String("specbook-dir", "", "directory of specbook text files (filename stem is the specbook number)")
		bomCSV        = pflag.String("bom-csv", "", "BOM parent-child relationship CSV, loaded into every session as BOM_df")
		transcriptDir = pflag.String("transcript-dir", "", "directory for filesystem transcript storage")
		transcriptDB  = pflag.String("transcript-db", "", "SQLite database path for transcript storage")
		sandbox       = pflag.String("sandbox", "local", "notebook sandbox: local or docker")
		sandboxImage  = pflag.String("sandbox-image", notebook.DefaultSandboxImage, "container image for the docker sandbox")
		python        = pflag.String("python", "python3", "python binary for the local sandbox")
		allowlist     = pflag.Bool("allowlist", false, "use the strict import allow-list policy instead of the denylist")
		useNats       = pflag.Bool("nats", false, "publish run output over NATS (NATS_URL) instead of in-process buffers")
	)
	pflag.Parse()

	if err := run(*addr, *specbookDir, *bomCSV, *transcriptDir, *transcriptDB,
		*sandbox, *sandboxImage, *python, *allowlist, *useNats); err != nil {
		slog.Error("spec-agent failed", slogx.Error(err))
		os.Exit(1)
	}
}

func run(addr, specbookDir, bomCSV, transcriptDir, transcriptDB, sandbox, sandboxImage, python string, allowlist, useNats bool) error {
	corpus, err := loadCorpus(specbookDir)
	if err != nil {
		return err
	}
	slog.Info("specbook corpus loaded", slog.Int("count", corpus.Len()))

	client := llm.New()
	root, err := specagent.NewAssistant(tools.NewSpecbookTools(client, corpus))
	if err != nil {
		return err
	}

	runner, err := notebookRunner(sandbox, sandboxImage, python)
	if err != nil {
		return err
	}

	storeOpts := []opts.Option[sessions.Store]{
		sessions.WithNotebookFactory(notebookFactory(runner, bomCSV, allowlist)),
	}
	switch {
	case transcriptDB != "":
		ts, err := sessions.NewSQLiteStore(transcriptDB)
		if err != nil {
			return err
		}
		defer ts.Close()
		storeOpts = append(storeOpts, sessions.WithTranscripts(ts))
	case transcriptDir != "":
		storeOpts = append(storeOpts, sessions.WithTranscripts(sessions.NewBlobStore(transcriptDir)))
	}

	store, err := sessions.NewStore(storeOpts...)
	if err != nil {
		return err
	}
	defer store.Close()

	var serverOpts []opts.Option[server.Server]
	if useNats {
		nc, err := natsx.NewClient()
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer nc.Close()
		serverOpts = append(serverOpts, server.WithPipeFactory(func(sessionID string) stream.Pipe {
			return stream.NewNatsBuffer(nc, sessionID)
		}))
	}

	srv, err := server.New(store, agent.NewRunner(client), root, serverOpts...)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(addr)
}

func notebookRunner(sandbox, image, python string) (notebook.Runner, error) {
	switch sandbox {
	case "docker":
		return notebook.NewDockerRunner(image)
	case "local":
		return &notebook.LocalRunner{Python: python}, nil
	default:
		return nil, fmt.Errorf("unknown sandbox %q", sandbox)
	}
}

// notebookFactory builds per-session notebooks and seeds them with the BOM
// table so user code can reference BOM_df from the first cell.
func notebookFactory(runner notebook.Runner, bomCSV string, allowlist bool) sessions.NotebookFactory {
	return func() (*notebook.Notebook, error) {
		nbOpts := []opts.Option[notebook.Notebook]{notebook.WithRunner(runner)}
		if allowlist {
			nbOpts = append(nbOpts, notebook.WithPolicy(notebook.PolicyAllowlist))
		}
		nb, err := notebook.New(nbOpts...)
		if err != nil {
			return nil, err
		}
		if bomCSV != "" {
			if err := tools.BootstrapBOM(context.Background(), nb, bomCSV); err != nil {
				_ = nb.Close()
				return nil, err
			}
		}
		return nb, nil
	}
}

// loadCorpus reads every regular file in dir as one specbook; the filename
// without extension is the specbook number.
func loadCorpus(dir string) (*tools.Corpus, error) {
	if dir == "" {
		return tools.NewCorpus(nil), nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("specbook dir: %w", err)
	}
	var books []tools.Specbook
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("specbook %s: %w", entry.Name(), err)
		}
		number := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		books = append(books, tools.Specbook{Number: number, Content: string(content)})
	}
	return tools.NewCorpus(books), nil
}
