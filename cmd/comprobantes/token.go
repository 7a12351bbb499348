package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/comprobantes-api/pkg/jwt"
)

func newTokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Genera un token JWT para la API",
		Example: `  comprobantes token --user ana --role facturador
  comprobantes token --user ops --role admin --minutes 30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			minutes, _ := cmd.Flags().GetInt("minutes")
			if user == "" {
				return fmt.Errorf("--user es requerido")
			}
			if minutes <= 0 {
				minutes = e.cfg.JWT.Expiration
			}
			tok, err := jwt.Generate(e.cfg.JWT.Secret, user, role, e.cfg.JWT.Issuer, minutes)
			if err != nil {
				return err
			}
			e.log.Info().Str("user_id", user).Str("role", role).Int("minutes", minutes).Msg("token emitido")
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("user", "", "identificador del usuario")
	cmd.Flags().String("role", jwt.RoleLector, "admin | facturador | lector")
	cmd.Flags().Int("minutes", 0, "vigencia en minutos (por defecto JWT_EXPIRATION_MINUTES)")
	return cmd
}
