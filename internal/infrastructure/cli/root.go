package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/vrelay/internal/app"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
	In      io.Reader
	Out     io.Writer
	Err     io.Writer
}

// errFragmentFailed makes the process exit non-zero after a rendered failure.
var errFragmentFailed = errors.New("one or more fragments did not succeed")

// annotationTolerant marks commands that still run when the container cannot
// be built, e.g. because the config file is broken.
const annotationTolerant = "vrelay/tolerant"

// state carries the container built once flags are parsed.
type state struct {
	opts       Options
	configPath string
	verbose    bool
	container  *app.Container
	buildErr   error
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	st := &state{opts: opts, verbose: opts.Verbose}

	root := &cobra.Command{
		Use:   "vrelay",
		Short: "vrelay - voice to code relay",
		Long: "vrelay turns spoken or typed requests into code, runs it locally, " +
			"and repairs failing fragments with a language model.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			container, err := app.BuildContainer(cmd.Context(), app.Options{
				ConfigPath: st.configPath,
				Verbose:    st.verbose,
			})
			if err != nil {
				if _, ok := cmd.Annotations[annotationTolerant]; ok {
					st.buildErr = err
					return nil
				}
				return err
			}
			st.container = container
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if st.container == nil {
				return nil
			}
			return st.container.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&st.configPath, "config", "", "Config file (default ~/.vrelay/config.yaml, or $VRELAY_CONFIG)")
	root.PersistentFlags().BoolVarP(&st.verbose, "verbose", "v", opts.Verbose, "Enable debug logging")

	root.AddCommand(newListenCommand(st))
	root.AddCommand(newRunCommand(st))
	root.AddCommand(newExecCommand(st))
	root.AddCommand(newCacheCommand(st))
	root.AddCommand(newHistoryCommand(st))
	root.AddCommand(newDoctorCommand(st))
	root.AddCommand(newConfigCommand(st))
	return root
}
