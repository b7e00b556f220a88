// ABOUTME: Demo data set for the mock CRM server
// ABOUTME: Two companies with leads, meetings, calls, tasks, owners, and deals
package mockapi

import (
	"fmt"
	"time"
)

func (s *Server) seed() {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(days, hours int) string {
		return base.AddDate(0, 0, days).Add(time.Duration(hours) * time.Hour).Format(time.RFC3339)
	}

	s.users = map[string]user{
		"u1": {ID: "u1", Name: "Grace Hopper", Email: "grace@example.com"},
		"u2": {ID: "u2", Name: "Alan Kay", Email: "alan@example.com"},
	}

	leads := []record{
		{"id": "L1", "name": "Ada Lovelace", "email": "ada@analytical.io", "companyId": "c1", "companyName": "Analytical Engines", "status": "qualified", "source": "referral", "ownerId": "u1", "value": 1200000},
		{"id": "L2", "name": "Charles Babbage", "email": "charles@difference.io", "companyId": "c1", "companyName": "Difference Ltd", "status": "contacted", "source": "website", "ownerId": "u2", "value": 450000},
		{"id": "L3", "name": "Edsger Dijkstra", "email": "ewd@shortest.path", "companyId": "c1", "companyName": "Shortest Path BV", "status": "new", "source": "event", "ownerId": "u1"},
		{"id": "L4", "name": "Barbara Liskov", "email": "barbara@substitution.org", "companyId": "c2", "companyName": "Substitution Inc", "status": "qualified", "ownerId": "u2", "value": 800000},
	}
	for i, r := range leads {
		r["createdAt"] = at(-30+i, 0)
		r["updatedAt"] = at(-30+i, 0)
	}
	s.records["leads"] = leads

	meetings := []record{
		{"title": "Discovery call", "companyId": "c1", "leadId": "L1", "status": "completed", "location": "Zoom", "startTime": at(-7, 0), "endTime": at(-7, 1)},
		{"title": "Pilot scoping", "companyId": "c1", "leadId": "L1", "status": "scheduled", "location": "London office", "startTime": at(3, 2), "endTime": at(3, 4)},
		{"title": "Intro", "companyId": "c1", "leadId": "L2", "status": "scheduled", "location": "Phone", "startTime": at(5, 0), "endTime": at(5, 0)},
		{"title": "Quarterly review", "companyId": "c2", "leadId": "L4", "status": "scheduled", "startTime": at(10, 0), "endTime": at(10, 1)},
	}
	calls := []record{
		{"subject": "Follow up on pricing", "companyId": "c1", "leadId": "L1", "direction": "outbound", "durationSeconds": 540, "outcome": "interested", "calledAt": at(-5, 3)},
		{"subject": "Inbound question", "companyId": "c1", "leadId": "L2", "direction": "inbound", "durationSeconds": 120, "outcome": "answered", "calledAt": at(-2, 5)},
		{"subject": "Voicemail", "companyId": "c1", "leadId": "L3", "direction": "outbound", "durationSeconds": 30, "outcome": "no answer", "calledAt": at(-1, 1)},
	}
	tasks := []record{
		{"title": "Send proposal", "companyId": "c1", "leadId": "L1", "assigneeId": "u1", "priority": "high", "status": "open", "dueDate": at(2, 0)},
		{"title": "Prepare demo environment", "companyId": "c1", "leadId": "L1", "assigneeId": "u2", "priority": "medium", "status": "in_progress", "dueDate": at(3, 0)},
		{"title": "Update CRM notes", "companyId": "c1", "leadId": "L2", "priority": "low", "status": "done", "dueDate": at(-1, 0)},
		{"title": "Book review room", "companyId": "c2", "leadId": "L4", "assigneeId": "u2", "priority": "low", "status": "open", "dueDate": at(9, 0)},
	}

	for name, list := range map[string][]record{"meetings": meetings, "calls": calls, "tasks": tasks} {
		prefix := resourceDefs[name].singular
		for i, r := range list {
			r["id"] = fmt.Sprintf("%s-%d", prefix, i+1)
			r["createdAt"] = at(-20+i, 0)
			r["updatedAt"] = at(-20+i, 0)
		}
		s.records[name] = list
	}

	s.deals = map[string][]deal{
		"L1": {
			{ID: "d1", Title: "Analytical Engines pilot", Stage: "proposal", Amount: 1200000},
			{ID: "d2", Title: "Support add-on", Stage: "prospecting", Amount: 150000},
		},
		"L4": {
			{ID: "d3", Title: "Substitution renewal", Stage: "negotiation", Amount: 800000},
		},
	}
}
