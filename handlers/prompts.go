// ABOUTME: MCP prompt handlers for reusable sales workflow templates
// ABOUTME: Builds lead summaries, meeting prep, and follow-up prompts from live store data
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	sess *session.Session
}

func NewPromptHandlers(sess *session.Session) *PromptHandlers {
	return &PromptHandlers{sess: sess}
}

// Prompts lists the prompt templates served by GetPrompt.
func (h *PromptHandlers) Prompts() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        "lead-summary",
			Description: "Summarize a lead with its owner, activity counts, and open deals",
			Arguments:   []*mcp.PromptArgument{{Name: "lead_id", Description: "Lead ID", Required: true}},
		},
		{
			Name:        "meeting-prep",
			Description: "Prepare for a meeting using its details and the lead's history",
			Arguments:   []*mcp.PromptArgument{{Name: "meeting_id", Description: "Meeting ID", Required: true}},
		},
		{
			Name:        "follow-up-suggestions",
			Description: "Suggest next steps for a lead from its open tasks and recent calls",
			Arguments:   []*mcp.PromptArgument{{Name: "lead_id", Description: "Lead ID", Required: true}},
		},
	}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "lead-summary":
		return h.getLeadSummaryPrompt(ctx, arguments)
	case "meeting-prep":
		return h.getMeetingPrepPrompt(ctx, arguments)
	case "follow-up-suggestions":
		return h.getFollowUpSuggestionsPrompt(ctx, arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getLeadSummaryPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	leadID := args["lead_id"]
	if leadID == "" {
		return nil, fmt.Errorf("lead_id is required")
	}

	h.sess.Leads.FetchByID(ctx, leadID)
	st := h.sess.Leads.Snapshot()
	if err := requestError(st.Detail, st.Error); err != nil {
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	lead := st.Current
	if lead == nil {
		return nil, fmt.Errorf("lead %s not found", leadID)
	}

	var promptText strings.Builder
	promptText.WriteString("Please provide a comprehensive summary of this lead:\n\n")
	promptText.WriteString(fmt.Sprintf("Name: %s\n", lead.Name))
	if lead.CompanyName != "" {
		promptText.WriteString(fmt.Sprintf("Company: %s\n", lead.CompanyName))
	}
	if lead.Email != "" {
		promptText.WriteString(fmt.Sprintf("Email: %s\n", lead.Email))
	}
	if lead.Status != "" {
		promptText.WriteString(fmt.Sprintf("Status: %s\n", lead.Status))
	}
	if lead.Value > 0 {
		promptText.WriteString(fmt.Sprintf("Value: $%d\n", lead.Value/100))
	}
	writeDetails(&promptText, st.CurrentDetails)

	promptText.WriteString("\nPlease include:")
	promptText.WriteString("\n1. Where this lead stands in the funnel")
	promptText.WriteString("\n2. Deals that need attention")
	promptText.WriteString("\n3. Suggested next steps")

	return textPrompt(fmt.Sprintf("Summary for lead: %s", lead.Name), promptText.String()), nil
}

func (h *PromptHandlers) getMeetingPrepPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	meetingID := args["meeting_id"]
	if meetingID == "" {
		return nil, fmt.Errorf("meeting_id is required")
	}

	h.sess.Meetings.FetchByID(ctx, meetingID)
	st := h.sess.Meetings.Snapshot()
	if err := requestError(st.Detail, st.Error); err != nil {
		return nil, fmt.Errorf("failed to fetch meeting: %w", err)
	}
	meeting := st.Current
	if meeting == nil {
		return nil, fmt.Errorf("meeting %s not found", meetingID)
	}

	var promptText strings.Builder
	promptText.WriteString("Help me prepare for this meeting:\n\n")
	promptText.WriteString(fmt.Sprintf("Title: %s\n", meeting.Title))
	if meeting.StartTime != nil {
		promptText.WriteString(fmt.Sprintf("When: %s\n", meeting.StartTime.Format(time.RFC1123)))
	}
	if meeting.Location != "" {
		promptText.WriteString(fmt.Sprintf("Where: %s\n", meeting.Location))
	}
	if len(meeting.Attendees) > 0 {
		promptText.WriteString(fmt.Sprintf("Attendees: %s\n", strings.Join(meeting.Attendees, ", ")))
	}
	if meeting.Description != "" {
		promptText.WriteString(fmt.Sprintf("Agenda: %s\n", meeting.Description))
	}
	writeDetails(&promptText, st.CurrentDetails)

	promptText.WriteString("\nPlease suggest talking points, open questions, and a desired outcome.")

	return textPrompt(fmt.Sprintf("Meeting prep: %s", meeting.Title), promptText.String()), nil
}

func (h *PromptHandlers) getFollowUpSuggestionsPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	leadID := args["lead_id"]
	if leadID == "" {
		return nil, fmt.Errorf("lead_id is required")
	}

	h.sess.Tasks.FetchPage(ctx, h.sess.Query(models.Query{LeadID: leadID, Status: models.TaskOpen}))
	tasks := h.sess.Tasks.Snapshot()
	if err := requestError(tasks.List, tasks.Error); err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	h.sess.Calls.FetchPage(ctx, h.sess.Query(models.Query{LeadID: leadID}))
	calls := h.sess.Calls.Snapshot()
	if err := requestError(calls.List, calls.Error); err != nil {
		return nil, fmt.Errorf("failed to fetch calls: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Suggest follow-ups for lead %s.\n\n", leadID))

	promptText.WriteString(fmt.Sprintf("Open tasks: %d\n", len(tasks.Items)))
	for _, task := range tasks.Items {
		promptText.WriteString(fmt.Sprintf("  - %s", task.Title))
		if task.DueDate != nil {
			promptText.WriteString(fmt.Sprintf(" (due %s)", task.DueDate.Format("2006-01-02")))
		}
		if task.Priority != "" {
			promptText.WriteString(fmt.Sprintf(" [%s]", task.Priority))
		}
		promptText.WriteString("\n")
	}

	promptText.WriteString(fmt.Sprintf("\nCalls: %d\n", len(calls.Items)))
	for _, call := range calls.Items {
		promptText.WriteString(fmt.Sprintf("  - %s", call.Subject))
		if call.Outcome != "" {
			promptText.WriteString(fmt.Sprintf(": %s", call.Outcome))
		}
		promptText.WriteString("\n")
	}

	promptText.WriteString("\nPlease prioritize the follow-ups and draft a short outreach message.")

	return textPrompt("Follow-up suggestions", promptText.String()), nil
}

func writeDetails(b *strings.Builder, details *models.Details) {
	if details == nil {
		return
	}
	if details.Owner != nil && details.Owner.Name != "" {
		b.WriteString(fmt.Sprintf("Owner: %s\n", details.Owner.Name))
	}
	b.WriteString(fmt.Sprintf("Activity: %d meetings, %d calls, %d tasks\n",
		details.Counts.Meetings, details.Counts.Calls, details.Counts.Tasks))
	if len(details.Deals) > 0 {
		b.WriteString("\nDeals:\n")
		for _, deal := range details.Deals {
			b.WriteString(fmt.Sprintf("  - %s", deal.Title))
			if deal.Stage != "" {
				b.WriteString(fmt.Sprintf(" (%s)", deal.Stage))
			}
			if deal.Amount > 0 {
				b.WriteString(fmt.Sprintf(" $%d", deal.Amount/100))
			}
			b.WriteString("\n")
		}
	}
}

func textPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}
