// Package main is a terminal client for the tour assistant. It drives an
// assistant session directly against the agent and prints replies as they
// stream in.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/tour-assistant/internal/config"
)

var (
	userID   string
	token    string
	agentURL string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Chat with the tour booking assistant from the terminal",
	Long: `Chat with the tour booking assistant from the terminal.

Messages are sent to the agent configured by AGENT_BASE_URL. Without --token
a token for --user is signed with JWT_SECRET, which works against the
development agent.

Commands inside the chat:
  /new         start a new conversation
  /list        list conversations
  /switch N    switch to conversation N
  /delete N    delete conversation N
  /quit        exit`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if agentURL != "" {
			cfg.Agent.BaseURL = agentURL
		}
		return runChat(cmd.Context(), cfg, chatOptions{
			UserID:   userID,
			Token:    token,
			LogLevel: logLevel,
			TokenTTL: 12 * time.Hour,
			In:       os.Stdin,
			Out:      os.Stdout,
		})
	},
}

func init() {
	rootCmd.Flags().StringVarP(&userID, "user", "u", "local-user", "User ID to chat as")
	rootCmd.Flags().StringVar(&token, "token", "", "Bearer token for the agent (default: sign one with JWT_SECRET)")
	rootCmd.Flags().StringVar(&agentURL, "agent-url", "", "Agent base URL (overrides AGENT_BASE_URL)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics on stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
