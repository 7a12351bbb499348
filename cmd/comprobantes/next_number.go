package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/comprobantes-api/internal/bootstrap"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
)

func newNextNumberCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next-number",
		Short: "Asigna y muestra el siguiente número de un tipo de documento",
		Long:  "El número queda consumido aunque no se emita ningún documento con él.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("type")
			t, err := entity.ParseDocumentType(raw)
			if err != nil {
				return err
			}
			c, err := bootstrap.Build(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer c.Close()

			number, err := c.Sequences.NextNumber(cmd.Context(), t)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), number)
			return nil
		},
	}
	cmd.Flags().String("type", string(entity.DocumentTypeInvoice), "Invoice | Receipt | CreditNote")
	return cmd
}
