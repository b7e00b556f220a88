// ABOUTME: Builds the MCP server and registers tools, resources, and prompts
// ABOUTME: Every resource gets the same six tools; meetings also accept attachments
package handlers

import (
	"fmt"

	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "salesdesk"
	ServerVersion = "0.1.0"
)

// NewServer returns an MCP server with everything in sess registered.
func NewServer(sess *session.Session) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)
	Register(server, sess)
	return server
}

// Register adds the tools, resources, and prompts for sess to server.
func Register(server *mcp.Server, sess *session.Session) {
	registerEntity(server, "meeting", "meetings",
		NewEntityHandlers[models.Meeting, models.Details, models.MeetingInput, models.MeetingPatch](sess.Meetings, "meeting", sess.Query))
	registerEntity(server, "lead", "leads",
		NewEntityHandlers[models.Lead, models.Details, models.LeadInput, models.LeadPatch](sess.Leads, "lead", sess.Query))
	registerEntity(server, "call", "calls",
		NewEntityHandlers[models.Call, models.Details, models.CallInput, models.CallPatch](sess.Calls, "call", sess.Query))
	registerEntity(server, "task", "tasks",
		NewEntityHandlers[models.Task, models.Details, models.TaskInput, models.TaskPatch](sess.Tasks, "task", sess.Query))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_meeting_attachment",
		Description: "Attach a local file to a meeting",
	}, NewUploadHandlers(sess.Meetings).Upload)

	resources := NewResourceHandlers()
	AddStore(resources, sess.Meetings)
	AddStore(resources, sess.Leads)
	AddStore(resources, sess.Calls)
	AddStore(resources, sess.Tasks)
	for _, name := range []string{"meetings", "leads", "calls", "tasks"} {
		server.AddResource(&mcp.Resource{
			URI:         "crm://" + name,
			Name:        name,
			Description: fmt.Sprintf("The page of %s loaded by the last list call", name),
			MIMEType:    "application/json",
		}, resources.ReadResource)
		server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: "crm://" + name + "/{id}",
			Name:        name + "-record",
			Description: fmt.Sprintf("One of the loaded %s", name),
			MIMEType:    "application/json",
		}, resources.ReadResource)
	}

	prompts := NewPromptHandlers(sess)
	for _, p := range prompts.Prompts() {
		server.AddPrompt(p, prompts.GetPrompt)
	}
}

func registerEntity[E models.Entity, D any, I any, P any](server *mcp.Server, singular, plural string, h *EntityHandlers[E, D, I, P]) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_" + plural,
		Description: fmt.Sprintf("List %s for the configured company with optional filters and paging", plural),
	}, h.List)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_" + singular,
		Description: fmt.Sprintf("Get one %s with its owner, activity counts, and related deals", singular),
	}, h.Get)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_" + singular,
		Description: fmt.Sprintf("Create a %s; companyId defaults to the configured company", singular),
	}, h.Create)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_" + singular,
		Description: fmt.Sprintf("Update fields of an existing %s", singular),
	}, h.Update)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_" + singular,
		Description: fmt.Sprintf("Delete a %s from the current page (call list_%s first)", singular, plural),
	}, h.Delete)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bulk_delete_" + plural,
		Description: fmt.Sprintf("Delete several %s in one request; on failure the page is reloaded", plural),
	}, h.BulkDelete)
}
