package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/comprobantes-api/internal/bootstrap"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/excel"
)

func newImportCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Importa comprobantes desde una planilla .xlsx",
		Long: `Lee la primera hoja de la planilla y carga los comprobantes con el número indicado
en la columna "numero". Las filas con el mismo número forman un solo documento.

Sin --confirm solo valida y muestra qué se emitiría.`,
		Example: `  comprobantes import --file enero.xlsx
  comprobantes import --file enero.xlsx --confirm`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			confirm, _ := cmd.Flags().GetBool("confirm")
			if path == "" {
				return fmt.Errorf("--file es requerido")
			}

			results, err := excel.NewParser(nil).ParseFile(path)
			if err != nil {
				return err
			}
			docs, failed := excel.Split(results)

			c, err := bootstrap.Build(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer c.Close()

			summary, err := c.Importer.Import(cmd.Context(), docs, confirm)
			if err != nil {
				return err
			}
			summary.AddFailures(failed)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d documento(s) con error", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "ruta de la planilla .xlsx")
	cmd.Flags().Bool("confirm", false, "emitir los documentos (sin esto solo valida)")
	return cmd
}
