package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workflow"
)

var socialChannels = []types.SocialChannel{
	types.ChannelInstagram, types.ChannelLinkedIn, types.ChannelTikTok, types.ChannelYouTube, types.ChannelBlog,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(
		taskCreateCmd, taskListCmd, taskShowCmd, taskMoveCmd, taskAssignCmd,
		taskApproveCmd, taskRejectCmd, taskDistributeCmd, taskEnhanceCmd,
		taskLinkCmd, taskAttachCmd, taskStatsCmd,
	)

	f := taskCreateCmd.Flags()
	f.String("title", "", "task title")
	f.String("description", "", "task brief")
	f.String("priority", string(types.PriorityMedium), "low, medium or high")
	f.String("agent", "", "assignee id or name")
	f.String("channel", "", "instagram, linkedin, tiktok, youtube or blog")
	f.String("date", "", "publication date")
	f.String("client", "", "client name")
	f.String("email", "", "client email")
	f.String("media", "", "media locator")
	f.Bool("enhance", false, "rewrite the brief with the model before saving")

	taskEnhanceCmd.Flags().String("task", "", "enhance this task's brief")

	lf := taskListCmd.Flags()
	lf.String("status", "", "only this column")
	lf.String("agent", "", "only tasks assigned to this agent")
	lf.String("channel", "", "only tasks for this channel")
	lf.Bool("plain", false, "print a table instead of the board")
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task board",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task (interactive when run in a terminal without --title)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}

		var (
			in      workflow.NewTask
			enhance bool
		)
		title, _ := cmd.Flags().GetString("title")
		if title == "" && interactive() {
			if in, enhance, err = taskWizard(a.store.Agents()); err != nil {
				return err
			}
		} else {
			if in, err = taskFromFlags(cmd, a); err != nil {
				return err
			}
			enhance, _ = cmd.Flags().GetBool("enhance")
		}

		if enhance {
			better, err := a.gateway.EnhanceBrief(ctx, in.Description)
			if err != nil {
				return fmt.Errorf("enhance brief: %w", err)
			}
			if better != "" && better != in.Description {
				keep := true
				if interactive() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n\n", titleStyle.Render("Improved brief"), better)
					if err := huh.NewConfirm().Title("Use the improved brief?").Value(&keep).Run(); err != nil {
						return err
					}
				}
				if keep {
					in.Description = better
				}
			}
		}

		stop := echoNotifications(a.store, cmd.OutOrStdout())
		defer stop()
		task, err := a.board.Create(in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s created in %s.\n", shortID(string(task.ID)), task.Status)
		return nil
	},
}

func taskFromFlags(cmd *cobra.Command, a *app) (workflow.NewTask, error) {
	f := cmd.Flags()
	title, _ := f.GetString("title")
	if strings.TrimSpace(title) == "" {
		return workflow.NewTask{}, errors.New("--title is required")
	}
	desc, _ := f.GetString("description")
	priority, _ := f.GetString("priority")
	channel, _ := f.GetString("channel")
	client, _ := f.GetString("client")
	email, _ := f.GetString("email")
	media, _ := f.GetString("media")
	date, _ := f.GetString("date")

	in := workflow.NewTask{
		Title:       title,
		Description: desc,
		Priority:    types.Priority(strings.ToLower(priority)),
		Channel:     types.SocialChannel(strings.ToLower(channel)),
		ClientName:  client,
		ClientEmail: email,
		MediaURL:    media,
	}
	if agent, _ := f.GetString("agent"); agent != "" {
		ag, err := resolveAgent(a.store, agent)
		if err != nil {
			return workflow.NewTask{}, err
		}
		in.AssignedAgentID = ag.ID
	}
	when, err := parseDate(date)
	if err != nil {
		return workflow.NewTask{}, err
	}
	in.ScheduledDate = when
	return in, nil
}

func taskWizard(agents []types.Agent) (workflow.NewTask, bool, error) {
	var (
		title, desc, date, client, email string
		priority                         = string(types.PriorityMedium)
		channel, agent                   string
		enhance                          bool
	)

	agentOpts := []huh.Option[string]{huh.NewOption("Unassigned", "")}
	for _, a := range agents {
		agentOpts = append(agentOpts, huh.NewOption(fmt.Sprintf("%s (%s)", a.Name, a.Role.Label()), string(a.ID)))
	}
	channelOpts := []huh.Option[string]{huh.NewOption("None", "")}
	for _, c := range socialChannels {
		channelOpts = append(channelOpts, huh.NewOption(string(c), string(c)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(&title).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("title is required")
				}
				return nil
			}),
			huh.NewText().Title("Brief").Value(&desc),
			huh.NewConfirm().Title("Improve the brief with AI?").Value(&enhance),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Priority").Options(
				huh.NewOption("Low", string(types.PriorityLow)),
				huh.NewOption("Medium", string(types.PriorityMedium)),
				huh.NewOption("High", string(types.PriorityHigh)),
			).Value(&priority),
			huh.NewSelect[string]().Title("Channel").Options(channelOpts...).Value(&channel),
			huh.NewSelect[string]().Title("Assignee").Options(agentOpts...).Value(&agent),
			huh.NewInput().Title("Publication date").Description("Optional. YYYY-MM-DD").Value(&date).Validate(func(s string) error {
				_, err := parseDate(s)
				return err
			}),
		),
		huh.NewGroup(
			huh.NewInput().Title("Client name").Placeholder(workflow.DefaultClientName).Value(&client),
			huh.NewInput().Title("Client email").Placeholder(workflow.DefaultClientEmail).Value(&email),
		),
	)
	if err := form.Run(); err != nil {
		return workflow.NewTask{}, false, err
	}

	when, _ := parseDate(date)
	return workflow.NewTask{
		Title:           title,
		Description:     desc,
		Priority:        types.Priority(priority),
		Channel:         types.SocialChannel(channel),
		AssignedAgentID: types.AgentID(agent),
		ScheduledDate:   when,
		ClientName:      client,
		ClientEmail:     email,
	}, enhance, nil
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the task board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		f := cmd.Flags()
		status, _ := f.GetString("status")
		agent, _ := f.GetString("agent")
		channel, _ := f.GetString("channel")
		plain, _ := f.GetBool("plain")

		var filter workflow.Filter
		if status != "" {
			if filter.Status, err = types.ParseStatus(status); err != nil {
				return err
			}
		}
		if agent != "" {
			ag, err := resolveAgent(a.store, agent)
			if err != nil {
				return err
			}
			filter.AgentID = ag.ID
		}
		filter.Channel = types.SocialChannel(channel)

		tasks := a.board.Filter(filter)
		out := cmd.OutOrStdout()
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks.")
			return nil
		}
		if plain || !interactive() {
			return writeTaskTable(out, tasks)
		}
		fmt.Fprintln(out, renderBoard(tasks, a.store.Agents()))
		return nil
	},
}

func writeTaskTable(out io.Writer, tasks []types.Task) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tAGENT\tCHANNEL\tAPPROVAL\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(string(t.ID)),
			t.Status,
			t.Priority,
			orDash(string(t.AssignedAgentID)),
			orDash(string(t.Channel)),
			t.ApprovalStatus,
			t.Title,
		)
	}
	return w.Flush()
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		t, err := resolveTask(a.store, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(t.Title))
		fmt.Fprintf(out, "id:        %s\n", t.ID)
		fmt.Fprintf(out, "status:    %s\n", t.Status)
		fmt.Fprintf(out, "priority:  %s\n", t.Priority)
		fmt.Fprintf(out, "assignee:  %s\n", orDash(string(t.AssignedAgentID)))
		fmt.Fprintf(out, "channel:   %s\n", orDash(string(t.Channel)))
		fmt.Fprintf(out, "approval:  %s\n", t.ApprovalStatus)
		fmt.Fprintf(out, "client:    %s <%s>\n", t.ClientName, t.ClientEmail)
		if t.ScheduledDate != nil {
			fmt.Fprintf(out, "scheduled: %s\n", t.ScheduledDate.Format("2006-01-02 15:04"))
		}
		if t.MediaURL != "" {
			fmt.Fprintf(out, "media:     %s\n", t.MediaURL)
		}
		if t.Description != "" {
			fmt.Fprintf(out, "\n%s\n", t.Description)
		}
		return nil
	},
}

// taskAction runs fn on a resolved task and echoes the notifications it raises.
func taskAction(fn func(ctx context.Context, a *app, t types.Task, args []string) (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		t, err := resolveTask(a.store, args[0])
		if err != nil {
			return err
		}
		stop := echoNotifications(a.store, cmd.OutOrStdout())
		defer stop()
		msg, err := fn(cmd.Context(), a, t, args[1:])
		if err != nil {
			return err
		}
		if msg != "" {
			fmt.Fprintln(cmd.OutOrStdout(), msg)
		}
		return nil
	}
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <id> <status>",
	Short: "Move a task to another column",
	Args:  cobra.ExactArgs(2),
	RunE: taskAction(func(_ context.Context, a *app, t types.Task, args []string) (string, error) {
		status, err := types.ParseStatus(args[0])
		if err != nil {
			return "", err
		}
		if _, err := a.board.Move(t.ID, status); err != nil {
			return "", err
		}
		return fmt.Sprintf("Moved %q to %s.", t.Title, status), nil
	}),
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <id> <agent>",
	Short: "Assign a task to an agent",
	Args:  cobra.ExactArgs(2),
	RunE: taskAction(func(_ context.Context, a *app, t types.Task, args []string) (string, error) {
		agent, err := resolveAgent(a.store, args[0])
		if err != nil {
			return "", err
		}
		updated, err := a.board.Assign(t.ID, agent.ID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Assigned %q to %s (%s).", t.Title, agent.Name, updated.Status), nil
	}),
}

var taskApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a task under review",
	Args:  cobra.ExactArgs(1),
	RunE: taskAction(func(_ context.Context, a *app, t types.Task, _ []string) (string, error) {
		_, err := a.board.Approve(t.ID)
		return "", err
	}),
}

var taskRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Send a task back for adjustments",
	Args:  cobra.ExactArgs(1),
	RunE: taskAction(func(_ context.Context, a *app, t types.Task, _ []string) (string, error) {
		_, err := a.board.Reject(t.ID)
		return "", err
	}),
}

var taskLinkCmd = &cobra.Command{
	Use:   "link <id>",
	Short: "Generate a client approval link",
	Args:  cobra.ExactArgs(1),
	RunE: taskAction(func(_ context.Context, a *app, t types.Task, _ []string) (string, error) {
		return a.board.RequestApproval(t.ID)
	}),
}

var taskAttachCmd = &cobra.Command{
	Use:   "attach <id> <media-locator>",
	Short: "Attach media to a task",
	Args:  cobra.ExactArgs(2),
	RunE: taskAction(func(_ context.Context, a *app, t types.Task, args []string) (string, error) {
		_, err := a.board.AttachMedia(t.ID, args[0])
		return "", err
	}),
}

var taskDistributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Let the model assign the backlog to agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		stop := echoNotifications(a.store, cmd.OutOrStdout())
		defer stop()
		n, err := a.board.Distribute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tasks moved to todo.\n", n)
		return nil
	},
}

var taskEnhanceCmd = &cobra.Command{
	Use:   "enhance [brief]",
	Short: "Rewrite a brief, or a task's brief with --task, using the model",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		brief := strings.Join(args, " ")
		id, _ := cmd.Flags().GetString("task")
		if id != "" {
			t, err := resolveTask(a.store, id)
			if err != nil {
				return err
			}
			brief = t.Description
		}
		if strings.TrimSpace(brief) == "" {
			return errors.New("nothing to enhance: pass a brief or --task")
		}
		better, err := a.gateway.EnhanceBrief(cmd.Context(), brief)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), better)
		return nil
	},
}

var taskStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		s := a.board.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Tasks: %d (approved %d, rejected %d)\n", s.Total, s.Approved, s.Rejected)
		for _, st := range types.Statuses() {
			fmt.Fprintf(out, "  %-12s %d\n", st, s.ByStatus[st])
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
