// ABOUTME: Per-resource behaviour of the mock CRM server
// ABOUTME: Declares id field styles, create rules, search fields, and date filters
package mockapi

// resourceDef describes how one collection is stored and rendered.
type resourceDef struct {
	name     string
	singular string
	// idFields are the keys the id is rendered under. Real backends are
	// inconsistent here, so each collection uses a different mix.
	idFields    []string
	createRules map[string]interface{}
	search      []string
	dateField   string
	attachments bool
}

var resourceDefs = map[string]resourceDef{
	"meetings": {
		name:     "meetings",
		singular: "meeting",
		idFields: []string{"_id", "meetingId"},
		createRules: map[string]interface{}{
			"title":     "required",
			"companyId": "required",
		},
		search:      []string{"title", "description", "location"},
		dateField:   "startTime",
		attachments: true,
	},
	"leads": {
		name:     "leads",
		singular: "lead",
		idFields: []string{"id"},
		createRules: map[string]interface{}{
			"name":      "required",
			"companyId": "required",
			"email":     "omitempty,email",
		},
		search:    []string{"name", "email", "companyName"},
		dateField: "createdAt",
	},
	"calls": {
		name:     "calls",
		singular: "call",
		idFields: []string{"_id"},
		createRules: map[string]interface{}{
			"subject":   "required",
			"companyId": "required",
		},
		search:    []string{"subject", "notes", "outcome"},
		dateField: "calledAt",
	},
	"tasks": {
		name:     "tasks",
		singular: "task",
		idFields: []string{"taskId", "_id"},
		createRules: map[string]interface{}{
			"title":     "required",
			"companyId": "required",
		},
		search:    []string{"title", "description"},
		dateField: "dueDate",
	},
}

// record is one stored object. The canonical id lives under "id".
type record map[string]interface{}

func (r record) id() string {
	s, _ := r["id"].(string)
	return s
}

func (r record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

// render returns a copy with the id under the collection's id fields.
func (d resourceDef) render(r record) map[string]interface{} {
	out := make(map[string]interface{}, len(r)+len(d.idFields))
	for k, v := range r {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	for _, f := range d.idFields {
		out[f] = r.id()
	}
	return out
}

// idKeys are client-sent keys that must never overwrite the stored id.
var idKeys = []string{"id", "_id", "meetingId", "callId", "taskId"}
