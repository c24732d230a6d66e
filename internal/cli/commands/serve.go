package commands

import (
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/sqlgate/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gateway over HTTP",
		Long: `Serve the configured store over HTTP.

Endpoints:
  POST /v1/query        run a statement and return its rows
  POST /v1/execute      run a statement and return the affected row count
  POST /v1/transaction  run a batch of statements in one transaction
  GET  /healthz         liveness and provider

Requests require an HS256 bearer token when server.jwt_secret is set.`,
		Example: `  sqlgate serve --addr :8787
  SQLGATE_SERVER_JWT_SECRET=... sqlgate serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srvCfg := cctx.Cfg.Server
			srv := server.New(cctx.Conn, server.Config{
				Addr:            srvCfg.Addr,
				ShutdownTimeout: srvCfg.ShutdownTimeout,
				Auth: server.AuthConfig{
					JWTSecret: srvCfg.JWTSecret,
					Issuer:    srvCfg.Issuer,
					Audience:  srvCfg.Audience,
				},
				Logger: cctx.Logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8787)")
	cmd.Flags().String("jwt-issuer", "", "Expected token issuer")
	cmd.Flags().String("jwt-audience", "", "Expected token audience")
	cmd.Flags().Duration("shutdown-wait", 0, "Graceful shutdown timeout")
	return cmd
}
