package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/madhesh-litfest/mlf/pkg/config"
	"github.com/madhesh-litfest/mlf/pkg/storage"
)

const envAdminPassword = "MLF_ADMIN_PASSWORD"

// readPasswordFn reads a password without echo; tests replace it.
var readPasswordFn = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts of the local store",
	}
	cmd.AddCommand(newAdminCreateCmd(), newAdminCountCmd())
	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator who can sign in to /admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.ResolvedDriver() != config.DriverLocal {
				return withExitCode(fmt.Errorf("administrators of the hosted store are managed by the hosted provider"), exitConfig)
			}
			password := os.Getenv(envAdminPassword)
			if password == "" {
				if password, err = readPasswordFn("Password: "); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			store, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return runAdminCreate(cmd.Context(), store, cmd.OutOrStdout(), email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "administrator email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runAdminCreate(ctx context.Context, store *storage.Store, out io.Writer, email, password string) error {
	admin, err := store.CreateAdmin(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created administrator %s\n", admin.Email)
	return nil
}

func newAdminCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of administrator accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.CountAdmins(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
