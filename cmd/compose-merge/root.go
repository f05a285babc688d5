// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/dsns/internal/compose"
	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/daemon"
	"github.com/ManuGH/dsns/internal/dashboard"
	xglog "github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/validate"
	"github.com/ManuGH/dsns/internal/version"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// errApplyFailed marks a run where at least one app failed to merge.
var errApplyFailed = errors.New("one or more apps failed")

var statusMarks = map[compose.Status]string{
	compose.StatusSuccess: "✓",
	compose.StatusSkipped: "-",
	compose.StatusError:   "✗",
}

type rootOptions struct {
	root     string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "compose-merge",
		Short:         "Merge docker-compose overrides into Umbrel app compose files",
		Version:       version.String(),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := validate.ParseLogLevel(opts.logLevel); err != nil {
				return err
			}
			xglog.Configure(xglog.Config{
				Level:   opts.logLevel,
				Service: "compose-merge",
				Version: version.Version,
				Output:  cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.root, "root",
		config.ParseString(config.EnvUmbrelAppData, config.DefaultComposeRoot),
		"app-data root holding one directory per app")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newApplyCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := validate.New()
			v.ListenAddr("listen", listen)
			v.ExistingDir("root", opts.root)
			if err := v.Err(); err != nil {
				return err
			}
			return serve(cmd.Context(), opts.root, listen, watch)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "dashboard listen address")
	cmd.Flags().BoolVar(&watch, "watch", false, "also re-apply overrides when they change")
	return cmd
}

func serve(ctx context.Context, root, listen string, watch bool) error {
	logger := xglog.WithComponent("compose-merge")
	applier := compose.NewApplier(root)
	dash := dashboard.New(applier, dashboard.Options{Version: version.Version, EnableLogging: true})

	serverCfg := config.Defaults().Server
	serverCfg.ListenAddr = listen
	serverCfg.WriteTimeout = 30 * time.Second

	mgr, err := daemon.NewManager(serverCfg, daemon.Deps{Logger: logger, APIHandler: dash.Handler()})
	if err != nil {
		return err
	}

	var tasks []daemon.Task
	if watch {
		tasks = append(tasks, daemon.Task{Name: "compose_watch", Run: compose.NewWatcher(applier, compose.DefaultDebounce).Run})
	}
	logger.Info().Str("root", root).Str("listen", listen).Bool("watch", watch).Msg("serving compose dashboard")
	return daemon.NewApp(logger, mgr, nil, tasks...).Run(ctx)
}

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var app string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Merge overrides into base compose files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applier := compose.NewApplier(opts.root)

			var results []compose.Result
			if app != "" {
				res, err := applier.ApplyApp(cmd.Context(), app)
				if err != nil {
					return err
				}
				results = []compose.Result{res}
			} else {
				var err error
				if results, err = applier.ApplyAll(cmd.Context()); err != nil {
					return err
				}
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "apply only this app")
	return cmd
}

func printResults(w io.Writer, results []compose.Result) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No apps with both compose files found.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s %s\n", statusMarks[r.Status], r.Message)
		if r.Backup != "" {
			fmt.Fprintf(w, "  backup: %s\n", r.Backup)
		}
	}
	if lo.ContainsBy(results, func(r compose.Result) bool { return r.Status == compose.StatusError }) {
		return errApplyFailed
	}
	return nil
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List apps and their compose files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			apps, err := compose.NewApplier(opts.root).Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"apps": apps, "root": opts.root})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "APP\tBASE\tOVERRIDE\tREADY")
			for _, a := range apps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Name, yesNo(a.HasBase), yesNo(a.HasOverride), yesNo(a.CanApply))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func yesNo(b bool) string {
	return lo.Ternary(b, "yes", "no")
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-apply an app whenever its override file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := compose.NewWatcher(compose.NewApplier(opts.root), debounce)
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", compose.DefaultDebounce, "quiet period after the last override write")
	return cmd
}
