package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aegis-safety/intake/internal/agent/graph"
	"github.com/aegis-safety/intake/internal/agent/graph/parsers"
	"github.com/aegis-safety/intake/internal/agent/intake"
	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/agent/repo"
	"github.com/aegis-safety/intake/internal/agent/voice"
	"github.com/aegis-safety/intake/internal/complaint"
	"github.com/aegis-safety/intake/internal/server"
	logx "github.com/aegis-safety/intake/pkg/logger"
	"github.com/aegis-safety/intake/pkg/tracing"
)

var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "intake",
	Short:         "Conversational complaint intake service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(complaintsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			logx.Init(logx.LoggerOpts{Environment: cfg.Env()})
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *AppConfig) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logx.Warn().Err(err).Msg("Tracing shutdown failed")
		}
	}()

	ttl, err := cfg.ConversationTTL()
	if err != nil {
		return err
	}

	var (
		sessions      model.SessionRepository
		conversations model.ConversationRepository
	)
	switch strings.ToLower(cfg.SessionStore) {
	case "", "memory":
		mem := repo.NewMemoryStore(ttl)
		sweeper, err := repo.NewSweeper(mem, cfg.Conversation.SweepSchedule)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
		sessions, conversations = mem, mem
	case "redis":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return fmt.Errorf("initialise redis: %w", err)
		}
		defer rdb.Close()
		sessions = repo.NewRedisSessionRepository(rdb, ttl)
		conversations = repo.NewRedisConversationRepository(rdb, ttl)
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}

	store, err := cfg.OpenComplaintStore(ctx)
	if err != nil {
		return fmt.Errorf("open complaint store: %w", err)
	}
	defer store.Close()

	cues, err := cfg.Cues()
	if err != nil {
		return err
	}
	extractor, err := parsers.NewExtractor(cues)
	if err != nil {
		return err
	}

	runner, err := graph.BuildDispatchGraph(ctx, graph.Config{
		Backend:          cfg.Backend,
		InterviewerModel: cfg.Interviewer,
		Prompt:           cfg.Prompt,
		Cues:             cues,
		ConversationRepo: conversations,
	})
	if err != nil {
		return fmt.Errorf("build dispatch graph: %w", err)
	}

	svc, err := intake.NewService(intake.Deps{
		Sessions:      sessions,
		Conversations: conversations,
		Dispatcher:    runner,
		Extractor:     extractor,
		Complaints:    store,
	})
	if err != nil {
		return err
	}

	handler, err := server.New(server.Config{
		Intake:  svc,
		Voice:   voice.NewAdapter(svc, voice.LogSynthesizer{}),
		Version: version,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logx.Info().
		Str("addr", cfg.HTTPAddr).
		Str("backend", cfg.Backend.Provider).
		Str("session_store", cfg.SessionStore).
		Str("complaint_store", cfg.ComplaintStore).
		Msg("Serving intake API (OpenAPI at /openapi.json)")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// transcriptLine is one turn of a transcript file. JSON files are read as
// YAML.
type transcriptLine struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

func readTranscript(r io.Reader) ([]model.Turn, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var lines []transcriptLine
	if err := yaml.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	turns := make([]model.Turn, 0, len(lines))
	for _, l := range lines {
		turns = append(turns, model.Turn{Role: model.ParseTurnRole(l.Role), Content: l.Content})
	}
	return turns, nil
}

func extractCmd() *cobra.Command {
	var cuesFile string
	cmd := &cobra.Command{
		Use:   "extract <transcript.json|yaml|->",
		Short: "Extract complaint fields from a transcript file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cues := parsers.DefaultCues()
			if cuesFile != "" {
				var err error
				if cues, err = parsers.LoadCues(cuesFile); err != nil {
					return err
				}
			}
			extractor, err := parsers.NewExtractor(cues)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			turns, err := readTranscript(in)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(extractor.Extract(turns))
		},
	}
	cmd.Flags().StringVar(&cuesFile, "cues", "", "YAML cue file (defaults to the built-in cues)")
	return cmd
}

func stageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage [status]",
		Short: "Show the progress stage of a status label, or all stages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Status", "Stage", "Progress"})
			if len(args) == 1 {
				s := complaint.StageOf(args[0])
				tw.AppendRow(table.Row{args[0], s.Label, fmt.Sprintf("%d%%", s.Progress)})
			} else {
				for _, s := range complaint.Stages() {
					tw.AppendRow(table.Row{s.Label, s.Label, fmt.Sprintf("%d%%", s.Progress)})
				}
			}
			tw.Render()
			return nil
		},
	}
}

func complaintsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "complaints", Short: "Inspect stored complaints"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List complaints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			store, err := cfg.OpenComplaintStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.ListComplaints(cmd.Context())
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Title", "Status", "Progress", "Filed"})
			for _, r := range items {
				tw.AppendRow(table.Row{
					r.ID,
					r.Title,
					r.Status,
					fmt.Sprintf("%d%%", r.Stage().Progress),
					r.DateFiled.Format(time.RFC3339),
				})
			}
			tw.Render()
			return nil
		},
	})
	return cmd
}
