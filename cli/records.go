// ABOUTME: Record CLI commands shared by meetings, leads, calls, and tasks
// ABOUTME: list, show, add, update, delete, bulk-delete, and attach driven through the stores
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/session"
	"github.com/harperreed/salesdesk/store"
)

// stdout is where commands print; tests swap it.
var stdout io.Writer = os.Stdout

// Resources lists the resource names the record commands accept.
var Resources = []string{"meetings", "leads", "calls", "tasks"}

// deleteWindow is the page size used to locate a record before deleting it.
const deleteWindow = 500

type columns[E any] struct {
	header []string
	row    func(E) []string
}

var meetingColumns = columns[models.Meeting]{
	header: []string{"TITLE", "START", "STATUS", "LOCATION", "ID"},
	row: func(m models.Meeting) []string {
		return []string{m.Title, formatTime(m.StartTime), dash(m.Status), dash(m.Location), m.ID}
	},
}

var leadColumns = columns[models.Lead]{
	header: []string{"NAME", "COMPANY", "STATUS", "VALUE", "ID"},
	row: func(l models.Lead) []string {
		value := "-"
		if l.Value > 0 {
			value = fmt.Sprintf("$%d", l.Value/100)
		}
		return []string{l.Name, dash(l.CompanyName), dash(l.Status), value, l.ID}
	},
}

var callColumns = columns[models.Call]{
	header: []string{"SUBJECT", "CALLED", "DIRECTION", "OUTCOME", "ID"},
	row: func(c models.Call) []string {
		return []string{c.Subject, formatTime(c.CalledAt), dash(c.Direction), dash(c.Outcome), c.ID}
	},
}

var taskColumns = columns[models.Task]{
	header: []string{"TITLE", "DUE", "PRIORITY", "STATUS", "ID"},
	row: func(t models.Task) []string {
		return []string{t.Title, formatTime(t.DueDate), dash(t.Priority), dash(t.Status), t.ID}
	},
}

// recordCommands is the command set of one resource.
type recordCommands struct {
	list       func(ctx context.Context, args []string) error
	show       func(ctx context.Context, args []string) error
	add        func(ctx context.Context, args []string) error
	update     func(ctx context.Context, args []string) error
	remove     func(ctx context.Context, args []string) error
	bulkRemove func(ctx context.Context, args []string) error
	attach     func(ctx context.Context, args []string) error
}

func commandsFor(sess *session.Session, pageSize int, resource string) (*recordCommands, error) {
	switch resource {
	case "meetings":
		c := newRecordCommands[models.Meeting, models.Details, models.MeetingInput, models.MeetingPatch](sess, sess.Meetings, pageSize, meetingColumns)
		c.attach = attachCommand(sess.Meetings)
		return c, nil
	case "leads":
		return newRecordCommands[models.Lead, models.Details, models.LeadInput, models.LeadPatch](sess, sess.Leads, pageSize, leadColumns), nil
	case "calls":
		return newRecordCommands[models.Call, models.Details, models.CallInput, models.CallPatch](sess, sess.Calls, pageSize, callColumns), nil
	case "tasks":
		return newRecordCommands[models.Task, models.Details, models.TaskInput, models.TaskPatch](sess, sess.Tasks, pageSize, taskColumns), nil
	}
	return nil, fmt.Errorf("unknown resource %q (valid: %s)", resource, strings.Join(Resources, ", "))
}

// RecordCommand runs "<action> <resource> [flags] [args]".
func RecordCommand(ctx context.Context, sess *session.Session, pageSize int, action string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s requires a resource (%s)", action, strings.Join(Resources, ", "))
	}
	cmds, err := commandsFor(sess, pageSize, args[0])
	if err != nil {
		return err
	}
	rest := args[1:]

	switch action {
	case "list":
		return cmds.list(ctx, rest)
	case "show":
		return cmds.show(ctx, rest)
	case "add":
		return cmds.add(ctx, rest)
	case "update":
		return cmds.update(ctx, rest)
	case "delete":
		return cmds.remove(ctx, rest)
	case "bulk-delete":
		return cmds.bulkRemove(ctx, rest)
	case "attach":
		if cmds.attach == nil {
			return fmt.Errorf("%s do not take attachments", args[0])
		}
		return cmds.attach(ctx, rest)
	}
	return fmt.Errorf("unknown action %q", action)
}

func newRecordCommands[E models.Entity, D any, I any, P any](sess *session.Session, s *store.Store[E, D], pageSize int, cols columns[E]) *recordCommands {
	name := s.Name()

	return &recordCommands{
		list: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("list "+name, flag.ContinueOnError)
			company := fs.String("company", "", "Company ID (default from config)")
			lead := fs.String("lead", "", "Filter by lead ID")
			status := fs.String("status", "", "Filter by status")
			search := fs.String("search", "", "Free text search")
			from := fs.String("from", "", "Start date (YYYY-MM-DD or RFC3339)")
			to := fs.String("to", "", "End date (YYYY-MM-DD or RFC3339)")
			page := fs.Int("page", 1, "Page number")
			limit := fs.Int("limit", pageSize, "Page size")
			cached := fs.Bool("cached", false, "Show the cached page without contacting the server")
			if err := fs.Parse(args); err != nil {
				return err
			}

			q := models.Query{CompanyID: *company, LeadID: *lead, Status: *status, Search: *search, Page: *page, Limit: *limit}
			var err error
			if q.From, err = parseDate(*from); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			if q.To, err = parseDate(*to); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			q = sess.Query(q)

			if *cached {
				if !s.Hydrate(ctx, q) {
					return fmt.Errorf("no cached page for this query")
				}
			} else {
				s.FetchPage(ctx, q)
			}

			st := s.Snapshot()
			if st.List.Status == store.StatusFailed {
				return fmt.Errorf("failed to list %s: %w", name, st.List.Err)
			}
			if len(st.Items) == 0 {
				fmt.Fprintf(stdout, "No %s found\n", name)
				return nil
			}

			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(cols.header, "\t"))
			for _, item := range st.Items {
				fmt.Fprintln(w, strings.Join(cols.row(item), "\t"))
			}
			_ = w.Flush()

			fmt.Fprintf(stdout, "\nPage %d of %d (%d total)\n", st.CurrentPage, st.TotalPages, st.Total)
			return nil
		},

		show: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("show "+name, flag.ContinueOnError)
			if err := fs.Parse(args); err != nil {
				return err
			}
			if fs.NArg() < 1 {
				return fmt.Errorf("record ID is required")
			}
			id := fs.Arg(0)

			s.FetchByID(ctx, id)

			st := s.Snapshot()
			if st.Detail.Status == store.StatusFailed {
				return fmt.Errorf("failed to load %s: %w", id, st.Detail.Err)
			}
			if st.Current == nil {
				return fmt.Errorf("%s not found", id)
			}
			printRecord(*st.Current)
			if st.CurrentDetails != nil {
				printDetails(st.CurrentDetails)
			}
			return nil
		},

		add: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("add "+name, flag.ContinueOnError)
			fields := fieldsFlag{}
			fs.Var(fields, "set", "Field to set as key=value (repeatable)")
			raw := fs.String("json", "", "All fields as a JSON object")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if err := fields.merge(*raw); err != nil {
				return err
			}
			if _, ok := fields["companyId"]; !ok {
				if scope := sess.Scope(); scope.CompanyID != "" {
					fields["companyId"] = scope.CompanyID
				}
			}

			payload := new(I)
			if err := fields.decode(payload); err != nil {
				return err
			}
			entity, err := s.Create(ctx, payload)
			if err != nil {
				return fmt.Errorf("failed to create: %w", err)
			}

			fmt.Fprintf(stdout, "✓ Created %s (ID: %s)\n", strings.TrimSuffix(name, "s"), (*entity).EntityID())
			return nil
		},

		update: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("update "+name, flag.ContinueOnError)
			fields := fieldsFlag{}
			fs.Var(fields, "set", "Field to change as key=value (repeatable)")
			raw := fs.String("json", "", "Changed fields as a JSON object")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if fs.NArg() < 1 {
				return fmt.Errorf("record ID is required")
			}
			if err := fields.merge(*raw); err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to update; use --set key=value")
			}

			patch := new(P)
			if err := fields.decode(patch); err != nil {
				return err
			}
			entity, err := s.Update(ctx, fs.Arg(0), patch)
			if err != nil {
				return fmt.Errorf("failed to update: %w", err)
			}

			id := fs.Arg(0)
			if entity != nil {
				id = (*entity).EntityID()
			}
			fmt.Fprintf(stdout, "✓ Updated %s\n", id)
			return nil
		},

		remove: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("delete "+name, flag.ContinueOnError)
			company := fs.String("company", "", "Company ID (default from config)")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if fs.NArg() < 1 {
				return fmt.Errorf("record ID is required")
			}
			id := fs.Arg(0)

			if err := loadWindow(ctx, sess, s, *company); err != nil {
				return err
			}
			if _, err := s.Remove(ctx, id); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}

			fmt.Fprintf(stdout, "✓ Deleted %s\n", id)
			return nil
		},

		bulkRemove: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("bulk-delete "+name, flag.ContinueOnError)
			company := fs.String("company", "", "Company ID (default from config)")
			if err := fs.Parse(args); err != nil {
				return err
			}

			if fs.NArg() > 0 {
				if err := loadWindow(ctx, sess, s, *company); err != nil {
					return err
				}
			}
			if err := s.BulkRemove(ctx, fs.Args()); err != nil {
				if store.KindOf(err) == store.KindTransport {
					fmt.Fprintf(stdout, "Reloaded: %d %s remain\n", s.Snapshot().Total, name)
				}
				return fmt.Errorf("failed to delete: %w", err)
			}

			fmt.Fprintf(stdout, "✓ Deleted %d %s\n", len(fs.Args()), name)
			return nil
		},
	}
}

// loadWindow lists the first deleteWindow records so deletes can find their
// target in the store.
func loadWindow[E models.Entity, D any](ctx context.Context, sess *session.Session, s *store.Store[E, D], company string) error {
	s.FetchPage(ctx, sess.Query(models.Query{CompanyID: company, Page: 1, Limit: deleteWindow}))
	if st := s.Snapshot(); st.List.Status == store.StatusFailed {
		return fmt.Errorf("failed to load %s: %w", s.Name(), st.List.Err)
	}
	return nil
}

func attachCommand[E models.Entity, D any](s *store.Store[E, D]) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		fs := flag.NewFlagSet("attach", flag.ContinueOnError)
		name := fs.String("name", "", "Attachment name (default: file name)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() < 2 {
			return fmt.Errorf("usage: attach meetings [--name <name>] <id> <file>")
		}
		id, path := fs.Arg(0), fs.Arg(1)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat file: %w", err)
		}
		if *name == "" {
			*name = filepath.Base(path)
		}

		var mu sync.Mutex
		last := -1
		unsubscribe := s.Subscribe(func(st store.State[E, D]) {
			mu.Lock()
			defer mu.Unlock()
			if pct, ok := st.UploadProgress[*name]; ok && pct != last {
				last = pct
				fmt.Fprintf(stdout, "\r%s: %3d%%", *name, pct)
			}
		})
		attachment, err := s.Upload(ctx, id, models.File{Name: *name, Size: info.Size(), Data: f})
		unsubscribe()
		fmt.Fprintln(stdout)
		if err != nil {
			return fmt.Errorf("failed to upload: %w", err)
		}
		s.ClearUploadProgress(*name)

		fmt.Fprintf(stdout, "✓ Attached %s (%d bytes)\n", attachment.Name, attachment.Size)
		return nil
	}
}

// fieldsFlag collects repeated --set key=value pairs. Values that parse as
// JSON (numbers, booleans, arrays, quoted strings) keep their JSON type.
type fieldsFlag map[string]any

func (f fieldsFlag) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (f fieldsFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err == nil && decoded != nil {
		if _, isObject := decoded.(map[string]any); !isObject {
			f[key] = decoded
			return nil
		}
	}
	f[key] = value
	return nil
}

func (f fieldsFlag) merge(raw string) error {
	if raw == "" {
		return nil
	}
	extra := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return fmt.Errorf("invalid --json: %w", err)
	}
	for k, v := range extra {
		if _, set := f[k]; !set {
			f[k] = v
		}
	}
	return nil
}

func (f fieldsFlag) decode(dst any) error {
	data, err := json.Marshal(map[string]any(f))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid field value: %w", err)
	}
	return nil
}

func printRecord(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fields := map[string]any{}
	_ = json.Unmarshal(data, &fields)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "aliasIds" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%s\n", k, formatValue(fields[k]))
	}
	_ = w.Flush()
}

func printDetails[D any](details *D) {
	d, ok := any(details).(*models.Details)
	if !ok {
		return
	}
	fmt.Fprintln(stdout)
	if d.Owner != nil {
		fmt.Fprintf(stdout, "Owner: %s", d.Owner.Name)
		if d.Owner.Email != "" {
			fmt.Fprintf(stdout, " <%s>", d.Owner.Email)
		}
		fmt.Fprintln(stdout)
	}
	fmt.Fprintf(stdout, "Activity: %d meetings, %d calls, %d tasks\n", d.Counts.Meetings, d.Counts.Calls, d.Counts.Tasks)
	if len(d.Deals) > 0 {
		fmt.Fprintln(stdout, "Deals:")
		for _, deal := range d.Deals {
			fmt.Fprintf(stdout, "  - %s (%s) $%d\n", deal.Title, dash(deal.Stage), deal.Amount/100)
		}
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
