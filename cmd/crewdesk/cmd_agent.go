package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	ctxengine "github.com/user/crewdesk/internal/context"
	"github.com/user/crewdesk/internal/types"
)

// rosterFile is the YAML layout of agent import/export.
type rosterFile struct {
	Agents []types.Agent `yaml:"agents"`
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentListCmd, agentShowCmd, agentContextCmd, agentExportCmd, agentImportCmd, agentResetCmd, agentSetModelCmd)
	agentExportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage the agent roster",
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tMODEL\tDOCS\tDESCRIPTION")
		for _, ag := range a.store.Agents() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", ag.ID, ag.Name, ag.Role.Label(), ag.Model, len(ag.KnowledgeBase), ag.Description)
		}
		return w.Flush()
	},
}

var agentShowCmd = &cobra.Command{
	Use:   "show <agent>",
	Short: "Show an agent's instruction and private knowledge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		ag, err := resolveAgent(a.store, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, speakerStyle(a.store.Agents(), ag.Name).Render(ag.Name))
		fmt.Fprintf(out, "id:    %s\nrole:  %s\nmodel: %s\n\n%s\n", ag.ID, ag.Role.Label(), ag.Model, ag.SystemInstruction)
		if len(ag.KnowledgeBase) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, headerStyle.Render("Knowledge"))
			for _, d := range ag.KnowledgeBase {
				fmt.Fprintf(out, "  %s  %s (%s, %d bytes)\n", shortID(string(d.ID)), d.Name, d.Type, len(d.Content))
			}
		}
		return nil
	},
}

var agentContextCmd = &cobra.Command{
	Use:   "context <agent>",
	Short: "Print the system context an agent receives and its token estimate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		ag, err := resolveAgent(a.store, args[0])
		if err != nil {
			return err
		}
		system := ctxengine.BuildSystemContext(&ag, a.store.Knowledge())
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, system)
		fmt.Fprintln(out)
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("~%d tokens", a.engine.CountTokens(system))))
		return nil
	},
}

var agentExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the roster as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		data, err := encodeRoster(a.store.Agents())
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write roster: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d agents to %s.\n", len(a.store.Agents()), path)
		return nil
	},
}

var agentImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Replace the roster from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		var data []byte
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read roster: %w", err)
		}
		agents, err := decodeRoster(data)
		if err != nil {
			return err
		}
		if err := a.store.SetAgents(agents); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d agents.\n", len(agents))
		return nil
	},
}

var agentResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default roster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.store.ResetAgents(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Roster reset to %d default agents.\n", len(a.store.Agents()))
		return nil
	},
}

var agentSetModelCmd = &cobra.Command{
	Use:   "set-model <agent> <model>",
	Short: "Change the chat model an agent runs on",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		ag, err := resolveAgent(a.store, args[0])
		if err != nil {
			return err
		}
		model, err := types.ParseModelTier(args[1])
		if err != nil {
			return err
		}
		if _, err := a.store.UpdateAgent(ag.ID, func(x *types.Agent) error {
			x.Model = model
			return nil
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s now runs on %s.\n", ag.Name, model)
		return nil
	},
}

func encodeRoster(agents []types.Agent) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rosterFile{Agents: agents}); err != nil {
		return nil, fmt.Errorf("encode roster: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode roster: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeRoster parses a roster file. Unknown roles and model tiers are
// rejected; every agent needs an id and a name.
func decodeRoster(data []byte) ([]types.Agent, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("roster has no agents")
	}
	seen := make(map[types.AgentID]bool, len(f.Agents))
	for i, ag := range f.Agents {
		if ag.ID == "" || ag.Name == "" {
			return nil, fmt.Errorf("agent %d: id and name are required", i+1)
		}
		if seen[ag.ID] {
			return nil, fmt.Errorf("duplicate agent id: %s", ag.ID)
		}
		seen[ag.ID] = true
		if !ag.Role.Valid() {
			return nil, fmt.Errorf("agent %s: unknown role %q", ag.ID, ag.Role)
		}
		if ag.Model == "" {
			f.Agents[i].Model = types.ModelFlash
		} else if !ag.Model.Valid() {
			return nil, fmt.Errorf("agent %s: unknown model %q", ag.ID, ag.Model)
		}
	}
	return f.Agents, nil
}
