package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hrtoolkit/internal/bot"
	"hrtoolkit/internal/db"
	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/naming"
	"hrtoolkit/internal/version"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tokenFlag string
	dbFlag    string
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Serve draws and groups over Telegram",
	Long: `Runs the Telegram bot until interrupted.

The token comes from --token or TELEGRAM_BOT_TOKEN. Group naming is enabled
when GEMINI_API_KEY (or API_KEY) is set.`,
	RunE: runBot,
}

func init() {
	botCmd.Flags().StringVar(&tokenFlag, "token", "", "Bot token (overrides TELEGRAM_BOT_TOKEN)")
	botCmd.Flags().StringVar(&dbFlag, "db", "", "Journal database path (overrides DATABASE_PATH)")
}

func runBot(cmd *cobra.Command, args []string) error {
	if tokenFlag != "" {
		cfg.Token = tokenFlag
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	if dbFlag != "" {
		cfg.DatabasePath = dbFlag
	}
	logger.Info("startup", zap.String("version", version.Version), zap.Int("pid", os.Getpid()))

	st, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var jm string
	_ = st.DB.Get(&jm, "PRAGMA journal_mode;")
	chats, _ := st.CountChats(ctx)
	logger.Info("journal opened", zap.String("path", cfg.DatabasePath), zap.String("journal_mode", jm), zap.Int("chats", chats))

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return err
	}
	api.Debug = false
	logger.Info("authorized", zap.String("username", api.Self.UserName))

	b := bot.New(api, st, logger)
	b.Rand = newRand()
	b.Label = logic.TemplateLabel(cfg.GroupNameTemplate)
	b.Spin = spinConfig()
	b.NamingTimeout = cfg.NamingTimeout
	b.MaxUploadBytes = cfg.MaxUploadBytes
	if cfg.GeminiAPIKey != "" {
		namer, err := naming.NewGenAI(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("group naming disabled", zap.Error(err))
		} else {
			b.Namer = namer
		}
	}

	b.Start(ctx)
	logger.Info("shutdown complete")
	return nil
}
