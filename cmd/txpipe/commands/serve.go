package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/journal"
	"github.com/airchains-network/txpipe/metrics"
	"github.com/airchains-network/txpipe/server"
	"github.com/airchains-network/txpipe/types"
)

// ServeCmd represents the serve command
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, event stream and metrics",
	Long: `Serve the transaction pipeline over HTTP. Every transaction is recorded in the journal,
counted in /metrics and streamed to /ws subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd)
	},
}

func init() {
	ServeCmd.Flags().String("listen", "", "listen address (default server.listen from config)")
	ServeCmd.Flags().Bool("no-signer", false, "serve read-only endpoints without loading a key")
	sourceFlags(ServeCmd)
}

func serveCommand(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	deps := server.Deps{Pipeline: e.pipe, Log: e.log}

	if noSigner, _ := cmd.Flags().GetBool("no-signer"); !noSigner {
		key, err := e.signer(cmd)
		if err != nil {
			return err
		}
		deps.Signer = key
		e.log.Infof("Transactions are signed by %s", key.Address().Hex())
	}

	db, err := journal.NewLevelDB(e.cfg.Journal.Path)
	if err != nil {
		return err
	}
	deps.Journal = journal.New(db, e.log)
	defer deps.Journal.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Gatherer = reg

	deps.Hub = server.NewHub(e.log)
	deps.Artifacts = serveArtifacts(cmd, e)

	e.pipe.Subscribe(deps.Journal)
	e.pipe.Subscribe(metrics.NewCollector(reg))
	e.pipe.Subscribe(deps.Hub)

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = e.cfg.Server.Listen
	}
	if err := server.New(deps).Start(ctx, listen); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	e.log.Info("Server stopped")
	return nil
}

// serveArtifacts compiles the configured sources. Contract endpoints answer 503 without them.
func serveArtifacts(cmd *cobra.Command, e *env) []*types.ContractArtifact {
	artifacts, err := loadArtifacts(cmd, e.fs, e.cfg, e.log)
	if err != nil {
		e.log.Warnf("Contract endpoints disabled: %v", err)
		return nil
	}
	e.log.Infof("Loaded %d contract artifacts", len(artifacts))
	return artifacts
}
