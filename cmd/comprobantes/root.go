package main

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/comprobantes-api/pkg/config"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// env configuración y logger cargados antes de cada subcomando.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "comprobantes",
		Short:         "Operación de facturas, recibos y notas de crédito",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = cfg.App.LogLevel
			}
			e.cfg = cfg
			e.log = logger.New(logger.Config{Env: cfg.App.Env, Level: level, Output: cmd.ErrOrStderr()})
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "", "nivel de log (por defecto LOG_LEVEL)")

	root.AddCommand(newImportCmd(e), newTokenCmd(e), newNextNumberCmd(e))
	return root
}
