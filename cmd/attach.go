// File: cmd/attach.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/peltrault/formsync/internal/browser"
	"github.com/peltrault/formsync/internal/config"
	"github.com/peltrault/formsync/internal/controller"
	"github.com/peltrault/formsync/internal/dom"
	"github.com/peltrault/formsync/internal/lookup"
	"github.com/peltrault/formsync/internal/observability"
	"github.com/peltrault/formsync/internal/watch"
)

// newAttachCmd creates the `attach` command: connect to the admin form page and
// keep its dependent options synchronized until interrupted.
func newAttachCmd() *cobra.Command {
	attachCmd := &cobra.Command{
		Use:   "attach [page-url]",
		Short: "Attaches to the assignment form and keeps its dependent options synchronized",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and environment values.
			if err := viper.BindPFlag("browser.remote_url", cmd.Flags().Lookup("remote")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Context from Execute; cancelled on SIGINT/SIGTERM.
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			session, err := browser.NewSession(ctx, cfg.Browser, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if len(args) == 1 {
				if err := session.Navigate(ctx, args[0]); err != nil {
					return err
				}
			}

			// Wait for the owner control before wiring anything else; without it
			// there is nothing to synchronize against.
			poller := dom.NewPoller(session, logger)
			if _, err := poller.Await(ctx, cfg.Selectors.Owner, dom.Policy{
				MaxAttempts: cfg.Poller.AttachAttempts,
				Interval:    cfg.Poller.AttachInterval,
			}); err != nil {
				return fmt.Errorf("owner control not found on page: %w", err)
			}

			// The option container renders asynchronously; a miss here is not
			// fatal, synchronization runs poll for it again with their own bound.
			if _, err := poller.Await(ctx, cfg.Selectors.OptionContainer, dom.Policy{
				MaxAttempts: cfg.Poller.DiscoveryAttempts,
				Interval:    cfg.Poller.DiscoveryInterval,
			}); err != nil {
				logger.Warn("Option container not rendered yet.", zap.Error(err))
			}

			surface := dom.NewSurface(session, cfg.Selectors, logger)
			styler := dom.NewStyler(session, cfg.Selectors.OptionContainer, logger)
			client := lookup.New(cfg.Endpoints, logger)

			ctrl := controller.New(client, surface, styler, controller.Config{
				Discovery: dom.Policy{
					MaxAttempts: cfg.Poller.FieldAttempts,
					Interval:    cfg.Poller.FieldInterval,
				},
				AssignmentURL: cfg.Endpoints.AssignmentScreen,
			}, logger)

			watcher := watch.New(session, ctrl, cfg.Watcher, cfg.Selectors, logger)
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Close()

			// Bring the widget to a consistent state for whatever the page
			// already shows.
			ctrl.Resync(ctx)

			logger.Info("Attached; synchronizing until interrupted.",
				zap.String("session_id", session.ID()))
			<-ctx.Done()

			logger.Info("Shutting down.")
			ctrl.Drain()
			return nil
		},
	}

	attachCmd.Flags().String("remote", "", "DevTools websocket URL of a running browser. (Overrides config/env)")
	attachCmd.Flags().Bool("headless", true, "Run the launched browser headless. (Overrides config/env)")

	return attachCmd
}
