package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"land_leads_app_go/config"
	"land_leads_app_go/logging"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/queue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "leadctl",
	Short:         "Inspect and export captured land leads",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "hash-password" {
			return nil
		}
		cfg = config.Load()
		var err error
		logger, err = logging.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list <campaign>",
	Short: "Print a campaign queue as JSON lines, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := queue.Open(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open submission queue: %w", err)
		}
		defer closeStore()

		return listInquiries(ctx, store, args[0], cmd.OutOrStdout())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [campaign...]",
	Short: "Export campaign queues to Excel (all campaigns when none are given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registry, err := campaigns.NewRegistry(cfg.CampaignsFile, logger)
		if err != nil {
			return fmt.Errorf("failed to load campaigns: %w", err)
		}
		store, closeStore, err := queue.Open(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open submission queue: %w", err)
		}
		defer closeStore()

		opts := exportOpts
		if opts.Archive {
			opts.Storage = newStorage(ctx, cfg)
		}

		results, err := exportCampaigns(ctx, registry, store, args, opts)
		for _, r := range results {
			line := fmt.Sprintf("%s\t%d\t%s", r.Campaign, r.Count, r.Location)
			if r.Link != "" {
				line += "\t" + r.Link
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return err
	},
}

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch <archive-key>",
	Short: "Download an archived workbook from archive storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := services.ValidateArchiveKey(key); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if fetchOut != "-" {
			name := fetchOut
			if name == "" {
				name = path.Base(key)
			}
			f, err := os.Create(name)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", name, err)
			}
			defer f.Close()
			out = f
		}

		n, err := fetchArchive(cmd.Context(), newStorage(cmd.Context(), cfg), key, out)
		if err != nil {
			return err
		}
		logger.Info("archive fetched", zap.String("key", key), zap.Int64("bytes", n))
		return nil
	},
}

var exportOpts exportOptions

var hashCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		hash, err := hashPassword(password, hashCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportOpts.Archive, "archive", false, "upload workbooks to archive storage (R2 or EXPORT_DIR)")
	exportCmd.Flags().StringVar(&exportOpts.OutDir, "out", ".", "directory for workbooks when not archiving")
	exportCmd.Flags().IntVar(&exportOpts.Concurrency, "concurrency", 4, "campaigns exported in parallel")
	exportCmd.Flags().DurationVar(&exportOpts.LinkTTL, "link-ttl", services.ArchiveLinkTTL, "validity of signed archive links")

	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "output file (default: archive file name, - for stdout)")

	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", config.MinAdminPasswordCost+2, "bcrypt cost")

	rootCmd.AddCommand(listCmd, exportCmd, fetchCmd, hashPasswordCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
