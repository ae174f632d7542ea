package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/doeshing/vrelay/internal/application/relay"
	"github.com/doeshing/vrelay/internal/application/session"
	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/pkg/codeblock"
	"github.com/doeshing/vrelay/internal/ports"
)

func newListenCommand(st *state) *cobra.Command {
	var (
		source string
		model  string
		plain  bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Start a session that relays every utterance until an exit phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := st.container
			out := newSyncWriter(cmd.OutOrStdout())
			renderer := NewRenderer(out, plain)

			svc, err := c.NewRelay(cmd.Context(), model, NewLinkOpener(c.Config.Preferences.OpenLinks, c.Logger))
			if err != nil {
				return err
			}
			src, err := c.NewSource(source, cmd.InOrStdin(), out)
			if err != nil {
				return err
			}

			sess, err := session.New(session.Options{
				Source:          src,
				Handler:         svc,
				ExitPhrases:     c.Config.GetExitPhrases(),
				QueueSize:       c.Config.GetQueueSize(),
				ShutdownTimeout: c.Config.GetShutdownTimeout(),
				HandleSignals:   true,
				Summarizer:      c.History,
				Logger:          c.Logger,
				OnHeard:         renderer.Heard,
				OnResult:        renderer.Result,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Listening via %s. Say one of [%s] to stop.\n",
				sourceName(source, c.Config), strings.Join(c.Config.GetExitPhrases(), ", "))
			summary, err := sess.Run(cmd.Context())
			renderer.Summary(summary)
			return err
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Command source: stdin|mic (default from config)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Override model name (default from config)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print replies without markdown rendering")
	return cmd
}

func sourceName(flag string, cfg domain.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Speech.Source != "" {
		return cfg.Speech.Source
	}
	return "stdin"
}

func newRunCommand(st *state) *cobra.Command {
	var (
		model string
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "run <request...>",
		Short: "Relay a single request: ask the model, run its code, repair failures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := st.container
			renderer := NewRenderer(cmd.OutOrStdout(), plain)

			svc, err := c.NewRelay(cmd.Context(), model, NewLinkOpener(c.Config.Preferences.OpenLinks, c.Logger))
			if err != nil {
				return err
			}

			spinner := newOracleSpinner(cmd.ErrOrStderr())
			spinner.Start()
			result, err := svc.Handle(cmd.Context(), strings.Join(args, " "))
			spinner.Stop()

			renderer.Result(result, nil)
			if err != nil {
				return err
			}
			if !result.Succeeded() {
				return errFragmentFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Override model name (default from config)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print replies without markdown rendering")
	return cmd
}

func newExecCommand(st *state) *cobra.Command {
	var (
		lang     string
		model    string
		noRepair bool
	)

	cmd := &cobra.Command{
		Use:   "exec <code...>",
		Short: "Run one fragment through the repair loop (\"-\" reads it from stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := st.container
			fragment, err := readFragment(cmd.InOrStdin(), args, lang)
			if err != nil {
				return err
			}

			var oracle ports.Oracle
			if !noRepair {
				conv, err := c.NewOracle(cmd.Context(), model)
				if err != nil {
					c.Logger.Warn("repairs disabled", map[string]interface{}{"error": err.Error()})
				} else {
					oracle = conv
				}
			}
			coordinator, err := c.NewCoordinator(oracle)
			if err != nil {
				return err
			}

			report, err := coordinator.Run(cmd.Context(), fragment)
			NewRenderer(cmd.OutOrStdout(), true).Report(1, report)
			if err != nil {
				return err
			}
			if !report.Succeeded() {
				return errFragmentFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Fragment language: script|shell (inferred when empty)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Override model name used for repairs")
	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "Run without asking the model for repairs")
	return cmd
}

func readFragment(in io.Reader, args []string, lang string) (domain.CodeFragment, error) {
	code := strings.Join(args, " ")
	if code == "-" {
		raw, err := io.ReadAll(in)
		if err != nil {
			return domain.CodeFragment{}, fmt.Errorf("read fragment: %w", err)
		}
		code = string(raw)
	}
	if strings.TrimSpace(code) == "" {
		return domain.CodeFragment{}, fmt.Errorf("empty fragment")
	}
	if lang == "" {
		return domain.NewFragment(code, codeblock.InferLanguage(code)), nil
	}
	parsed, ok := domain.ParseLanguage(lang)
	if !ok {
		return domain.CodeFragment{}, fmt.Errorf("unknown language %q (want script|shell)", lang)
	}
	return domain.NewFragment(code, parsed), nil
}

// oracleSpinner is a no-op when the writer is not a terminal.
type oracleSpinner interface {
	Start()
	Stop()
}

type noSpinner struct{}

func (noSpinner) Start() {}
func (noSpinner) Stop() {}

func newOracleSpinner(w io.Writer) oracleSpinner {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return NewSpinner(w, "thinking...")
	}
	return noSpinner{}
}

var _ session.Handler = (*relay.Service)(nil)
