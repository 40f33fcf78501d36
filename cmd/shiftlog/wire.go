package main

import (
	"context"
	"fmt"

	"github.com/zulandar/shiftlog/internal/chat"
	discordadapter "github.com/zulandar/shiftlog/internal/chat/discord"
	slackadapter "github.com/zulandar/shiftlog/internal/chat/slack"
	telegramadapter "github.com/zulandar/shiftlog/internal/chat/telegram"
	"github.com/zulandar/shiftlog/internal/config"
	"github.com/zulandar/shiftlog/internal/drive"
	"github.com/zulandar/shiftlog/internal/google"
	"github.com/zulandar/shiftlog/internal/report"
	"github.com/zulandar/shiftlog/internal/sheets"
	googleauth "golang.org/x/oauth2/google"
)

// flowFromConfig maps the flow section onto the controller's step chain.
func flowFromConfig(cfg *config.Config) report.Flow {
	return report.Flow{
		JourneyType:     cfg.Flow.JourneyType,
		ComputeDistance: cfg.Flow.ComputeDistance,
		RequirePhotos:   cfg.Flow.RequirePhotos,
	}
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (chat.Adapter, error) {
	switch cfg.Platform {
	case config.PlatformTelegram:
		return telegramadapter.New(telegramadapter.AdapterOpts{
			Token: cfg.Telegram.Token,
		})
	case config.PlatformSlack:
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken: cfg.Slack.AppToken,
			BotToken: cfg.Slack.BotToken,
		})
	case config.PlatformDiscord:
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken: cfg.Discord.BotToken,
		})
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// loadCredentials parses the service-account key once for both clients.
func loadCredentials(ctx context.Context, cfg *config.Config) (*googleauth.Credentials, error) {
	key, err := google.LoadJSON(cfg.Google.CredentialsJSON, cfg.Google.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return google.Credentials(ctx, key)
}

// newAppender builds the spreadsheet persister for the configured flow.
func newAppender(ctx context.Context, cfg *config.Config, creds *googleauth.Credentials) (*sheets.Appender, error) {
	svc, err := google.NewSheetsService(ctx, creds)
	if err != nil {
		return nil, err
	}
	return sheets.New(sheets.AppenderOpts{
		Service:       svc,
		SpreadsheetID: cfg.Google.SheetID,
		SheetName:     cfg.Google.SheetName,
		Header:        report.Header(flowFromConfig(cfg)),
	})
}

// newUploader builds the Drive photo uploader, or nil when photos are off.
func newUploader(ctx context.Context, cfg *config.Config, creds *googleauth.Credentials) (report.Uploader, error) {
	if !cfg.Flow.RequirePhotos {
		return nil, nil
	}
	svc, err := google.NewDriveService(ctx, creds)
	if err != nil {
		return nil, err
	}
	return drive.New(drive.UploaderOpts{Service: svc, FolderID: cfg.Google.DriveFolderID})
}
