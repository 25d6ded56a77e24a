package context

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/user/crewdesk/internal/types"
)

// EnhancePrompt is the template used to rewrite a task brief. It uses Go
// text/template syntax with a single .Brief field.
const EnhancePrompt = `You are an expert social media content strategist.
Improve the following task brief so it is clearer, more detailed and actionable for a creative team.
Keep it concise, in the same language as the original, and return only the improved brief.

Original brief:
{{.Brief}}
`

// DistributionPrompt is the template used for bulk backlog assignment.
// Fields: .Agents (id, name, role, description) and .Tasks (id, title, description).
const DistributionPrompt = `You are the team manager of a content production agency.
Assign each backlog task below to the most suitable agent, based on each agent's role and description.

Agents:
{{- range .Agents}}
- id: {{.ID}} | name: {{.Name}} | role: {{.Role.Label}} | description: {{.Description}}
{{- end}}

Backlog tasks:
{{- range .Tasks}}
- id: {{.ID}} | title: {{.Title}} | description: {{.Description}}
{{- end}}

Return a JSON array where every item has "taskId", "agentId" and a short "reason" explaining the choice.
Only use the ids listed above.
`

var (
	enhanceTmpl      = template.Must(template.New("enhance").Parse(EnhancePrompt))
	distributionTmpl = template.Must(template.New("distribution").Parse(DistributionPrompt))
)

// RenderEnhancePrompt renders EnhancePrompt for a brief.
func RenderEnhancePrompt(brief string) (string, error) {
	var buf bytes.Buffer
	if err := enhanceTmpl.Execute(&buf, struct{ Brief string }{brief}); err != nil {
		return "", fmt.Errorf("render enhance prompt: %w", err)
	}
	return buf.String(), nil
}

// RenderDistributionPrompt renders DistributionPrompt for the backlog and roster.
func RenderDistributionPrompt(tasks []types.Task, agents []types.Agent) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Tasks  []types.Task
		Agents []types.Agent
	}{tasks, agents}
	if err := distributionTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render distribution prompt: %w", err)
	}
	return buf.String(), nil
}
