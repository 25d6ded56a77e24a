package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/user/crewdesk/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !interactive() {
			return errors.New("setup needs a terminal; use `crewdesk config set` instead")
		}
		cfg := loadConfig()

		chatID := ""
		if cfg.Telegram.NotifyChatID != 0 {
			chatID = strconv.FormatInt(cfg.Telegram.NotifyChatID, 10)
		}
		useKeyring := config.KeyringAvailable()

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Model provider").
					Options(
						huh.NewOption("Gemini (chat, images and video)", config.ProviderGemini),
						huh.NewOption("OpenAI-compatible (chat only)", config.ProviderOpenAI),
					).
					Value(&cfg.LLM.Provider),
				huh.NewInput().
					Title("API key").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.LLM.APIKey),
				huh.NewInput().
					Title("Base URL").
					Description("Optional. Leave empty for the provider default.").
					Value(&cfg.LLM.BaseURL),
				huh.NewInput().
					Title("Chat model override").
					Description("Optional. Leave empty to use each agent's model.").
					Value(&cfg.LLM.Model),
			),
			huh.NewGroup(
				huh.NewInput().
					Title("Telegram bot token").
					Description("Optional.").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.Telegram.Token),
				huh.NewInput().
					Title("Telegram chat for notifications").
					Description("Optional numeric chat id.").
					Validate(validateChatID).
					Value(&chatID),
				huh.NewInput().
					Title("GitHub token").
					Description("Optional. Raises the rate limit for repository imports.").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.GitHub.Token),
			),
			huh.NewGroup(
				huh.NewConfirm().
					Title("Serve the HTTP API and approval links?").
					Value(&cfg.HTTP.Enabled),
				huh.NewInput().
					Title("Public URL for approval links").
					Value(&cfg.HTTP.PublicURL),
				huh.NewInput().
					Title("Knowledge drop folder").
					Description("Optional. Files placed here join the company knowledge base.").
					Value(&cfg.Knowledge.WatchDir),
				huh.NewConfirm().
					Title("Store secrets in the OS keyring?").
					Value(&useKeyring),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("setup: %w", err)
		}

		cfg.Telegram.NotifyChatID, _ = strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)

		if useKeyring {
			for key, val := range map[string]*string{
				"llm.api_key":    &cfg.LLM.APIKey,
				"telegram.token": &cfg.Telegram.Token,
				"github.token":   &cfg.GitHub.Token,
			} {
				if *val == "" {
					continue
				}
				if err := config.SetSecret(key, *val); err != nil {
					return fmt.Errorf("store %s in keyring: %w", key, err)
				}
				*val = ""
			}
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Configuration saved to", cfgPath)
		if useKeyring {
			fmt.Fprintln(out, "Secrets stored in the OS keyring.")
		}
		return nil
	},
}

func validateChatID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return errors.New("chat id must be a number")
	}
	return nil
}
