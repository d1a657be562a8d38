package cli

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/client/config"
	"github.com/spf13/cobra"
)

type appOpener func(ctx context.Context, c *config.Config) (*App, error)

// NewRootCommand builds the filevault command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewApp)
}

func newRootCommand(open appOpener) *cobra.Command {
	var app *App

	root := &cobra.Command{
		Use:           "filevault",
		Short:         "FileVault versioned file storage client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := config.RegisterFlags(root.PersistentFlags())

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := flags.Load()
		if err != nil {
			return err
		}
		app, err = open(cmd.Context(), cfg)
		return err
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	}

	current := func() *App { return app }
	root.AddCommand(
		registerCommand(current),
		loginCommand(current),
		logoutCommand(current),
		whoamiCommand(current),
		filesCommand(current),
		lsCommand(current),
		mkdirCommand(current),
		uploadCommand(current),
		downloadCommand(current),
		versionsCommand(current),
	)
	return root
}
