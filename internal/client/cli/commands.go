package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/client/repositories/metadata"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNotLoggedIn = errors.New("not logged in: run register or login first")

func registerCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "register <email>",
		Short: "Create an owner and keep its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx, cancel := a.request(cmd.Context())
			defer cancel()

			resp, err := a.client.Register(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.saveSession(cmd.Context(), args[0], resp.AccessToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (root folder %s)\n", args[0], resp.RootFolderID)
			return nil
		},
	}
}

func loginCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> [token]",
		Short: "Keep an access token issued by the server operator",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 2 {
				token = args[1]
			} else {
				t, err := readToken(cmd)
				if err != nil {
					return err
				}
				token = t
			}
			if token == "" {
				return errors.New("empty token")
			}
			if err := app().saveSession(cmd.Context(), args[0], token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", args[0])
			return nil
		},
	}
}

// readToken prompts for the token without echo on a terminal and reads a
// line otherwise.
func readToken(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Access token: ")
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func logoutCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.session.Clear(cmd.Context()); err != nil {
				return err
			}
			a.client.SetAccessToken("")
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func whoamiCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the owner of the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, ok, err := app().session.Get(cmd.Context(), metadata.KeyEmail)
			if err != nil {
				return err
			}
			if !ok {
				return errNotLoggedIn
			}
			fmt.Fprintln(cmd.OutOrStdout(), email)
			return nil
		},
	}
}

func filesCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List every file of the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx, cancel := a.request(cmd.Context())
			defer cancel()

			files, err := a.client.ListFiles(ctx)
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), files)
		},
	}
}

func lsCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List a folder, the root folder by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx, cancel := a.request(cmd.Context())
			defer cancel()

			folderID := ""
			if len(args) == 1 {
				folderID = args[0]
			}
			listing, err := a.client.ListFolder(ctx, folderID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", listing.Folder.Name, listing.Folder.ID)
			return printNodes(cmd.OutOrStdout(), listing.Children)
		},
	}
}

func mkdirCommand(app func() *App) *cobra.Command {
	var parent string
	c := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx, cancel := a.request(cmd.Context())
			defer cancel()

			folder, err := a.client.CreateFolder(ctx, parent, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created folder %s (%s)\n", folder.Name, folder.ID)
			return nil
		},
	}
	c.Flags().StringVarP(&parent, "parent", "p", "", "parent folder id, the root folder by default")
	return c
}

func uploadCommand(app func() *App) *cobra.Command {
	var folder, name string
	c := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file, adding a version when the name already exists in the folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", args[0])
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			resp, err := app().client.Upload(cmd.Context(), f, name, folder, info.Size())
			if err != nil {
				return err
			}
			verb := "added version"
			if resp.NewFile {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s v%d (%s, %s)\n",
				verb, resp.File.Name, resp.Version.Number, resp.File.ID, formatSize(resp.Version.Size))
			return nil
		},
	}
	c.Flags().StringVarP(&folder, "folder", "d", "", "target folder name, the root folder by default")
	c.Flags().StringVarP(&name, "name", "n", "", "file name to store, the base name of path by default")
	return c
}

func downloadCommand(app func() *App) *cobra.Command {
	var version int64
	c := &cobra.Command{
		Use:   "download <file-id> <out-path>",
		Short: "Download the latest or a given version of a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v *int64
			if cmd.Flags().Changed("version") {
				v = &version
			}

			out, err := os.CreateTemp(filepath.Dir(args[1]), ".filevault-*")
			if err != nil {
				return err
			}
			defer os.Remove(out.Name())
			defer out.Close()

			node, ver, err := app().client.Download(cmd.Context(), args[0], v, out)
			if err != nil {
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			if err := os.Rename(out.Name(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s v%d to %s (%s)\n", node.Name, ver.Number, args[1], formatSize(ver.Size))
			return nil
		},
	}
	c.Flags().Int64VarP(&version, "version", "v", 0, "version number, the latest by default")
	return c
}

func versionsCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <file-id>",
		Short: "List the stored versions of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx, cancel := a.request(cmd.Context())
			defer cancel()

			history, err := a.client.ListVersions(ctx, args[0])
			if err != nil {
				return err
			}
			return printVersions(cmd.OutOrStdout(), history)
		},
	}
}
