package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/user/crewdesk/internal/conversation"
	"github.com/user/crewdesk/internal/router"
	"github.com/user/crewdesk/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("to", "", "talk to one agent directly instead of the team")
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the team, or to one agent with --to",
	Long: `Send one message and print the reply, or start an interactive session
when no message is given.

In the team channel the manager answers unless you @mention someone.
Session commands:
  /team          switch to the team channel
  /to <agent>    switch to an agent's direct channel
  /agents        list the roster
  /history       reprint this channel
  /quit          leave`,
	Args: cobra.ArbitraryArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}

	channel := types.TeamChannel
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		ag, err := resolveAgent(a.store, to)
		if err != nil {
			return err
		}
		channel = types.DirectChannel(ag.ID)
	}

	if len(args) > 0 {
		return chatTurn(ctx, a, cmd.OutOrStdout(), channel, strings.Join(args, " "))
	}
	return chatREPL(ctx, a, channel)
}

// chatTurn sends one message and streams the reply to out.
func chatTurn(ctx context.Context, a *app, out io.Writer, channel types.ChannelID, text string) error {
	agents := a.store.Agents()
	if d, err := router.Route(channel, agents, text); err == nil {
		fmt.Fprintln(out, speakerStyle(agents, d.Agent.Name).Render(d.Agent.Name))
	}
	reply, err := a.session.Send(ctx, channel, text,
		conversation.WithOnChunk(func(chunk string) { fmt.Fprint(out, chunk) }),
	)
	if err != nil {
		return err
	}
	if i := strings.Index(reply.Text, "\n\n[ERROR:"); i >= 0 {
		fmt.Fprint(out, errorStyle.Render(reply.Text[i:]))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)
	return nil
}

func channelLabel(a *app, channel types.ChannelID) string {
	if channel.IsTeam() {
		return "team"
	}
	if ag, ok := a.store.Agent(types.AgentID(channel)); ok {
		return strings.ToLower(firstWord(ag.Name))
	}
	return string(channel)
}

func chatCompleter(agents []types.Agent) *readline.PrefixCompleter {
	var names []readline.PrefixCompleterInterface
	for _, ag := range agents {
		names = append(names, readline.PcItem(strings.ToLower(firstWord(ag.Name))))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("/team"),
		readline.PcItem("/to", names...),
		readline.PcItem("/agents"),
		readline.PcItem("/history"),
		readline.PcItem("/quit"),
	)
}

func chatREPL(ctx context.Context, a *app, channel types.ChannelID) error {
	prompt := func() string {
		return userStyle.Render(channelLabel(a, channel)+">") + " "
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt(),
		HistoryFile:       filepath.Join(a.cfg.DataDir, "chat_history"),
		HistoryLimit:      1000,
		AutoComplete:      chatCompleter(a.store.Agents()),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("start chat: %w", err)
	}
	defer rl.Close()
	out := rl.Stdout()

	fmt.Fprintln(out, mutedStyle.Render("Type a message, @mention an agent, or /quit. Ctrl+D exits."))
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			fields := strings.Fields(input)
			switch fields[0] {
			case "/quit", "/exit", "/q":
				return nil
			case "/team":
				channel = types.TeamChannel
			case "/to":
				if len(fields) < 2 {
					fmt.Fprintln(out, "usage: /to <agent>")
					continue
				}
				ag, err := resolveAgent(a.store, fields[1])
				if err != nil {
					fmt.Fprintln(out, errorStyle.Render(err.Error()))
					continue
				}
				channel = types.DirectChannel(ag.ID)
			case "/agents":
				for _, ag := range a.store.Agents() {
					fmt.Fprintf(out, "  %s  %s\n", speakerStyle(a.store.Agents(), ag.Name).Render(ag.Name), mutedStyle.Render(ag.Description))
				}
			case "/history":
				printHistory(out, a, a.session.History(ctx, channel))
			default:
				fmt.Fprintln(out, "unknown command:", fields[0])
			}
			rl.SetPrompt(prompt())
			continue
		}

		if err := chatTurn(ctx, a, out, channel, input); err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
		}
	}
}

func printHistory(out io.Writer, a *app, msgs []types.Message) {
	agents := a.store.Agents()
	for _, m := range msgs {
		name := userStyle.Render("you")
		if m.Role == types.MessageModel {
			name = speakerStyle(agents, m.SenderName).Render(m.SenderName)
		}
		fmt.Fprintf(out, "%s %s\n%s\n\n", mutedStyle.Render(m.Timestamp.Format("15:04")), name, m.Text)
	}
}
