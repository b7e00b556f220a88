// ABOUTME: In-memory CRM REST server used for local development and integration tests
// ABOUTME: Speaks the {success,statusCode,message,result} envelope with scoping, paging, and fault injection
package mockapi

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 500
)

// Operations accepted by FailNext and Hits.
const (
	OpList       = "list"
	OpGet        = "get"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpBulkDelete = "bulk-delete"
	OpUpload     = "upload"
)

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithToken requires "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithSeed loads the demo data set.
func WithSeed() Option {
	return func(s *Server) {
		s.seed()
	}
}

// WithoutUpdateEcho makes PUT answer without the updated record, like some
// production endpoints do.
func WithoutUpdateEcho() Option {
	return func(s *Server) {
		s.noUpdateEcho = true
	}
}

type failure struct {
	status  int
	message string
}

type user struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type deal struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Stage  string `json:"stage"`
	Amount int64  `json:"amount"`
}

// Server is an http.Handler serving /api/<resource> routes.
type Server struct {
	e        *echo.Echo
	logger   *zap.Logger
	validate *validator.Validate
	token    string
	now      func() time.Time

	noUpdateEcho bool

	mu       sync.Mutex
	records  map[string][]record
	users    map[string]user
	deals    map[string][]deal
	failures map[string]failure
	hits     map[string]int
}

type echoValidator struct {
	v *validator.Validate
}

func (ev *echoValidator) Validate(i interface{}) error {
	return ev.v.Struct(i)
}

func New(opts ...Option) *Server {
	s := &Server{
		e:        echo.New(),
		logger:   zap.NewNop(),
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		records:  make(map[string][]record),
		users:    make(map[string]user),
		deals:    make(map[string][]deal),
		failures: make(map[string]failure),
		hits:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Validator = &echoValidator{v: s.validate}
	s.e.HTTPErrorHandler = s.handleHTTPError

	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestID())
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("http.request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	api := s.e.Group("/api", s.requireToken, s.requireResource)
	api.GET("/:resource", s.list)
	api.POST("/:resource", s.create)
	api.POST("/:resource/bulk-delete", s.bulkDelete)
	api.GET("/:resource/:id", s.get)
	api.PUT("/:resource/:id", s.update)
	api.DELETE("/:resource/:id", s.remove)
	api.POST("/:resource/:id/attachments", s.upload)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Echo() *echo.Echo {
	return s.e
}

// FailNext makes the next op on resource fail with status and message.
// An empty message produces a body without one.
func (s *Server) FailNext(op, resource string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op+" "+resource] = failure{status: status, message: message}
}

// Hits returns how many op requests reached resource.
func (s *Server) Hits(op, resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[op+" "+resource]
}

// Insert stores a record as-is and returns its id. A missing id is assigned.
func (s *Server) Insert(resource string, fields map[string]interface{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := record{}
	for k, v := range fields {
		r[k] = v
	}
	if r.id() == "" {
		r["id"] = uuid.NewString()
	}
	s.records[resource] = append(s.records[resource], r)
	return r.id()
}

// Count returns the number of stored records in resource.
func (s *Server) Count(resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[resource])
}

func envelope(status int, message string, result interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"success":    status < 400,
		"statusCode": status,
		"result":     result,
	}
	if message != "" {
		body["message"] = message
	}
	return body
}

func respond(c echo.Context, status int, result interface{}) error {
	return c.JSON(status, envelope(status, "", result))
}

func fail(c echo.Context, status int, message string) error {
	if message == "" {
		return c.NoContent(status)
	}
	return c.JSON(status, envelope(status, message, nil))
}

func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := "internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		message = fmt.Sprint(he.Message)
	}
	s.logger.Warn("http.response.error", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	_ = fail(c, status, message)
}

func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token == "" {
			return next(c)
		}
		if c.Request().Header.Get(echo.HeaderAuthorization) != "Bearer "+s.token {
			return fail(c, http.StatusUnauthorized, "invalid or missing token")
		}
		return next(c)
	}
}

func (s *Server) requireResource(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := resourceDefs[c.Param("resource")]; !ok {
			return fail(c, http.StatusNotFound, fmt.Sprintf("unknown resource %q", c.Param("resource")))
		}
		return next(c)
	}
}

// begin counts the hit and reports an injected failure, if any.
func (s *Server) begin(op string, c echo.Context) (resourceDef, *failure) {
	def := resourceDefs[c.Param("resource")]
	key := op + " " + def.name

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key]++
	if f, ok := s.failures[key]; ok {
		delete(s.failures, key)
		return def, &f
	}
	return def, nil
}

func (s *Server) list(c echo.Context) error {
	def, injected := s.begin(OpList, c)
	if injected != nil {
		return fail(c, injected.status, injected.message)
	}

	q := c.QueryParams()
	companyID := q.Get("companyId")
	if companyID == "" {
		return fail(c, http.StatusBadRequest, "companyId is required")
	}
	page, err := positiveParam(q.Get("page"), 1)
	if err != nil {
		return fail(c, http.StatusBadRequest, "page must be a positive integer")
	}
	limit, err := positiveParam(q.Get("limit"), defaultLimit)
	if err != nil || limit > maxLimit {
		return fail(c, http.StatusBadRequest, "limit must be between 1 and 500")
	}
	from, err := timeParam(q.Get("from"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "from must be RFC3339")
	}
	to, err := timeParam(q.Get("to"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "to must be RFC3339")
	}

	leadID, status, search := q.Get("leadId"), q.Get("status"), strings.ToLower(q.Get("search"))

	s.mu.Lock()
	var matched []map[string]interface{}
	for _, r := range s.records[def.name] {
		if r.str("companyId") != companyID {
			continue
		}
		if leadID != "" && r.str("leadId") != leadID {
			continue
		}
		if status != "" && r.str("status") != status {
			continue
		}
		if search != "" && !matchesSearch(r, def.search, search) {
			continue
		}
		if !inRange(r.str(def.dateField), from, to) {
			continue
		}
		matched = append(matched, def.render(r))
	}
	s.mu.Unlock()

	total := len(matched)
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	start := (page - 1) * limit
	items := []map[string]interface{}{}
	if start < total {
		end := start + limit
		if end > total {
			end = total
		}
		items = matched[start:end]
	}

	return respond(c, http.StatusOK, map[string]interface{}{
		"total":       total,
		"currentPage": page,
		"totalPages":  totalPages,
		"items":       items,
	})
}

func (s *Server) get(c echo.Context) error {
	def, injected := s.begin(OpGet, c)
	if injected != nil {
		return fail(c, injected.status, injected.message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, _ := s.findLocked(def.name, c.Param("id"))
	if r == nil {
		return fail(c, http.StatusNotFound, def.singular+" not found")
	}
	if companyID := c.QueryParam("companyId"); companyID != "" && r.str("companyId") != companyID {
		return fail(c, http.StatusNotFound, def.singular+" not found")
	}

	out := def.render(r)
	for k, v := range s.detailsLocked(def, r) {
		out[k] = v
	}
	return respond(c, http.StatusOK, out)
}

func (s *Server) create(c echo.Context) error {
	def, injected := s.begin(OpCreate, c)
	if injected != nil {
		return fail(c, injected.status, injected.message)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid JSON body")
	}
	if errs := s.validate.ValidateMap(body, def.createRules); len(errs) > 0 {
		return fail(c, http.StatusUnprocessableEntity, validationMessage(errs))
	}

	r := record{}
	for k, v := range body {
		r[k] = v
	}
	for _, k := range idKeys {
		delete(r, k)
	}
	now := s.now().Format(time.RFC3339)
	r["id"] = uuid.NewString()
	r["createdAt"] = now
	r["updatedAt"] = now

	s.mu.Lock()
	s.records[def.name] = append(s.records[def.name], r)
	out := def.render(r)
	s.mu.Unlock()

	return respond(c, http.StatusCreated, out)
}

func (s *Server) update(c echo.Context) error {
	def, injected := s.begin(OpUpdate, c)
	if injected != nil {
		return fail(c, injected.status, injected.message)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid JSON body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, idx := s.findLocked(def.name, c.Param("id"))
	if r == nil {
		return fail(c, http.StatusNotFound, def.singular+" not found")
	}

	updated := record{}
	for k, v := range r {
		updated[k] = v
	}
	for k, v := range body {
		updated[k] = v
	}
	for _, k := range idKeys {
		delete(updated, k)
	}
	updated["id"] = r.id()
	updated["updatedAt"] = s.now().Format(time.RFC3339)
	s.records[def.name][idx] = updated

	if s.noUpdateEcho {
		return c.JSON(http.StatusOK, envelope(http.StatusOK, "updated", nil))
	}
	return respond(c, http.StatusOK, def.render(updated))
}

func (s *Server) remove(c echo.Context) error {
	def, injected := s.begin(OpDelete, c)
	if injected != nil {
		return fail(c, injected.status, injected.message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, idx := s.findLocked(def.name, c.Param("id"))
	if r == nil {
		return fail(c, http.StatusNotFound, def.singular+" not found")
	}
	list := s.records[def.name]
	s.records[def.name] = append(list[:idx:idx], list[idx+1:]...)
	return c.JSON(http.StatusOK, envelope(http.StatusOK, def.singular+" deleted", nil))
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// bulkDelete removes every id it can find. Missing ids make the whole
// request fail even though the found ones are gone, the partial failure a
// client has to recover from.
func (s *Server) bulkDelete(c echo.Context) error {
	def, injected := s.begin(OpBulkDelete, c)
	if injected != nil {
		return fail(c, injected.status, injected.message)
	}

	var req bulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid JSON body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusUnprocessableEntity, "ids must be a non-empty list")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	remove := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		remove[id] = true
	}
	kept := make([]record, 0, len(s.records[def.name]))
	for _, r := range s.records[def.name] {
		if remove[r.id()] {
			delete(remove, r.id())
			continue
		}
		kept = append(kept, r)
	}
	s.records[def.name] = kept

	if len(remove) > 0 {
		return fail(c, http.StatusNotFound, fmt.Sprintf("%d of %d %s not found", len(remove), len(req.IDs), def.name))
	}
	return c.JSON(http.StatusOK, envelope(http.StatusOK, fmt.Sprintf("%d %s deleted", len(req.IDs), def.name), nil))
}

func (s *Server) upload(c echo.Context) error {
	def, injected := s.begin(OpUpload, c)
	if injected != nil {
		return fail(c, injected.status, injected.message)
	}
	if !def.attachments {
		return fail(c, http.StatusNotFound, def.name+" do not take attachments")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "file is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, _ := s.findLocked(def.name, c.Param("id"))
	if r == nil {
		return fail(c, http.StatusNotFound, def.singular+" not found")
	}

	attachment := map[string]interface{}{
		"name":       file.Filename,
		"size":       file.Size,
		"url":        fmt.Sprintf("/files/%s/%s", r.id(), file.Filename),
		"uploadedAt": s.now().Format(time.RFC3339),
	}
	existing, _ := r["attachments"].([]interface{})
	r["attachments"] = append(existing, attachment)
	return respond(c, http.StatusCreated, attachment)
}

func (s *Server) findLocked(resource, id string) (record, int) {
	for i, r := range s.records[resource] {
		if r.id() == id {
			return r, i
		}
	}
	return nil, -1
}

// detailsLocked builds the aggregates a detail view shows next to a record.
func (s *Server) detailsLocked(def resourceDef, r record) map[string]interface{} {
	out := map[string]interface{}{}

	ownerID := r.str("ownerId")
	if ownerID == "" {
		ownerID = r.str("assigneeId")
	}
	if u, ok := s.users[ownerID]; ok {
		out["owner"] = u
	}

	leadID := r.str("leadId")
	if def.name == "leads" {
		leadID = r.id()
	}
	counts := map[string]int{"tasks": 0, "calls": 0, "meetings": 0}
	if leadID != "" {
		for _, name := range []string{"tasks", "calls", "meetings"} {
			for _, other := range s.records[name] {
				if other.str("leadId") == leadID {
					counts[name]++
				}
			}
		}
	}
	out["counts"] = counts

	if deals := s.deals[leadID]; len(deals) > 0 {
		sorted := append([]deal(nil), deals...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
		out["deals"] = sorted
	}
	return out
}

func positiveParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("not a positive integer: %q", raw)
	}
	return n, nil
}

func timeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func inRange(raw string, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func matchesSearch(r record, fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(r.str(f)), needle) {
			return true
		}
	}
	return false
}

func validationMessage(errs map[string]interface{}) string {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}
