package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ashureev/handoff-voice/internal/config"
	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/intent"
	"github.com/ashureev/handoff-voice/internal/orchestrator"
	"github.com/ashureev/handoff-voice/internal/providers"
	"github.com/ashureev/handoff-voice/internal/reasoning"
)

var (
	chatProvider string
	chatSpeak    bool
	chatPlain    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with Bob and Alice in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if chatProvider != "" {
			_ = os.Setenv("REASONING_PROVIDER", chatProvider)
		}
		if !chatSpeak {
			_ = os.Setenv("SPEECH_PROVIDER", config.ProviderMock)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		gateways, err := providers.Build(cfg, slog.Default())
		if err != nil {
			return err
		}

		machine := orchestrator.New(
			orchestrator.Config{StatusRevertDelay: cfg.StatusRevertDelay},
			orchestrator.Deps{
				Detector: intent.NewDetector(),
				Reasoner: reasoning.New(gateways.Backend,
					reasoning.WithMaxTokens(cfg.Reasoning.MaxTokens),
					reasoning.WithTemperature(cfg.Reasoning.Temperature),
				),
				Transcriber: gateways.Transcriber,
				Synthesizer: gateways.Synthesizer,
				Player:      orchestrator.NopPlayer{},
			},
		)
		defer machine.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var render renderFunc = plainRender
		if !chatPlain {
			render = markdownRenderer(terminalWidth())
		}
		return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), machine, render)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatProvider, "provider", "p", "", "reasoning provider (openai, anthropic, mock)")
	chatCmd.Flags().BoolVar(&chatSpeak, "speak", false, "synthesize replies with the configured speech provider")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "print replies without markdown rendering")
	rootCmd.AddCommand(chatCmd)
}

type renderFunc func(text string) string

func plainRender(text string) string {
	return text + "\n"
}

func markdownRenderer(width int) renderFunc {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-10),
	)
	if err != nil {
		slog.Debug("markdown renderer unavailable", "error", err)
		return plainRender
	}
	return func(text string) string {
		out, err := r.Render(text)
		if err != nil {
			return plainRender(text)
		}
		return out
	}
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w < 20 {
		return 80
	}
	return w
}

// runChat reads one utterance per line and prints every agent line the
// machine adds to the transcript. Lines starting with "/" are commands.
func runChat(ctx context.Context, in io.Reader, out io.Writer, m *orchestrator.Machine, render renderFunc) error {
	store := m.Store()
	printed := len(store.Transcript())

	fmt.Fprintf(out, "You're talking to %s. Type /help for commands.\n", domain.MustLookup(store.Active()).Name)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done := chatCommand(out, m, line)
			if done {
				return nil
			}
			printed = len(store.Transcript())
			continue
		}

		err := m.SubmitText(ctx, line)
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(out, "! %s (%v)\n", m.Status(), err)
		}

		entries := store.Transcript()
		for _, e := range entries[printed:] {
			if e.Speaker == domain.SpeakerUser {
				continue
			}
			a, _ := domain.Lookup(domain.AgentID(e.Speaker))
			fmt.Fprintf(out, "%s:\n%s", a.Name, render(e.Text))
		}
		printed = len(entries)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func chatCommand(out io.Writer, m *orchestrator.Machine, line string) bool {
	switch line {
	case "/quit", "/exit":
		return true
	case "/agents":
		active := m.Store().Active()
		for _, a := range domain.Agents {
			marker := " "
			if a.ID == active {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-6s %s\n", marker, a.Name, a.Description)
		}
	case "/reset":
		m.Store().Reset()
		fmt.Fprintf(out, "Conversation cleared. You're talking to %s.\n", domain.MustLookup(m.Store().Active()).Name)
	default:
		fmt.Fprintln(out, "commands: /agents /reset /quit")
	}
	return false
}
