package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gacha-bot/internal/bot"
	"gacha-bot/internal/config"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/service"
	"gacha-bot/internal/token"
)

var passwordEnv string

var createAdminCmd = &cobra.Command{
	Use:   "create-admin <username> <telegram_user_id>",
	Short: "Create an admin login; the password is read from the environment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		telegramID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram user id %q", args[1])
		}
		password := os.Getenv(passwordEnv)
		if password == "" {
			return errors.New(passwordEnv + " is empty")
		}

		return withPool(cmd.Context(), func(cfg *config.Config, pool *db.Pool) error {
			sessions := token.NewSessions(cfg.Security.JWTSecret, cfg.Security.SessionTTL)
			auth := service.NewAdminAuthService(pool, bot.DisabledSender{}, sessions, cfg.Security.OTPTTL)

			admin, err := auth.CreateAdmin(cmd.Context(), args[0], password, telegramID)
			if err != nil {
				return err
			}
			log.Info().Int64("admin_id", admin.ID).Str("username", admin.Username).Msg("Admin created")
			return nil
		})
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&passwordEnv, "password-env", "ADMIN_PASSWORD", "environment variable holding the password")
	rootCmd.AddCommand(createAdminCmd)
}
