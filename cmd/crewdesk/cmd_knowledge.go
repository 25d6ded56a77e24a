package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/crewdesk/internal/knowledge"
	"github.com/user/crewdesk/internal/types"
)

func init() {
	rootCmd.AddCommand(knowledgeCmd)
	knowledgeCmd.AddCommand(knowledgeAddCmd, knowledgeGitHubCmd, knowledgeWebCmd, knowledgeListCmd, knowledgeRemoveCmd)
	for _, c := range []*cobra.Command{knowledgeAddCmd, knowledgeGitHubCmd, knowledgeWebCmd, knowledgeListCmd, knowledgeRemoveCmd} {
		c.Flags().String("agent", "", "use this agent's private knowledge instead of the company pool")
	}
}

var knowledgeCmd = &cobra.Command{
	Use:     "knowledge",
	Aliases: []string{"kb"},
	Short:   "Manage company and agent knowledge",
}

// storeDocs files docs under the agent named by --agent, or the global pool.
func storeDocs(cmd *cobra.Command, a *app, docs ...types.KnowledgeDocument) error {
	target := "company knowledge"
	if name, _ := cmd.Flags().GetString("agent"); name != "" {
		ag, err := resolveAgent(a.store, name)
		if err != nil {
			return err
		}
		if err := a.store.AddAgentKnowledge(ag.ID, docs...); err != nil {
			return err
		}
		target = ag.Name
	} else if err := a.store.AddKnowledge(docs...); err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s, %d bytes) to %s.\n", d.Name, d.Type, len(d.Content), target)
	}
	return nil
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Import text, markdown, CSV, JSON or email files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		var docs []types.KnowledgeDocument
		for _, path := range args {
			doc, err := knowledge.ReadFile(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return storeDocs(cmd, a, docs...)
	},
}

var knowledgeGitHubCmd = &cobra.Command{
	Use:   "github <owner/repo>",
	Short: "Import a repository's README and recent open issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		gh := knowledge.NewGitHub(knowledge.WithGitHubToken(a.cfg.GitHub.Token))
		docs, err := gh.Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to import.")
			return nil
		}
		return storeDocs(cmd, a, docs...)
	},
}

var knowledgeWebCmd = &cobra.Command{
	Use:   "web <url>",
	Short: "Import a web page as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := knowledge.NewWeb().Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return storeDocs(cmd, a, doc)
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		docs := a.store.Knowledge()
		if name, _ := cmd.Flags().GetString("agent"); name != "" {
			ag, err := resolveAgent(a.store, name)
			if err != nil {
				return err
			}
			docs = ag.KnowledgeBase
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSOURCE\tSIZE\tMODIFIED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				shortID(string(d.ID)), d.Name, d.Type, d.Source, len(d.Content), d.LastModified.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var knowledgeRemoveCmd = &cobra.Command{
	Use:   "rm <id|name>",
	Short: "Remove a knowledge document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("agent")
		if name == "" {
			if err := a.store.RemoveKnowledge(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
			return nil
		}

		ag, err := resolveAgent(a.store, name)
		if err != nil {
			return err
		}
		for _, d := range ag.KnowledgeBase {
			if string(d.ID) == args[0] || d.Name == args[0] || strings.HasPrefix(string(d.ID), args[0]) {
				if err := a.store.RemoveAgentKnowledge(ag.ID, d.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s.\n", d.Name, ag.Name)
				return nil
			}
		}
		return fmt.Errorf("%s has no document %q", ag.Name, args[0])
	},
}
