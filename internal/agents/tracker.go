package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/jira-tracker/internal/common"
	"github.com/tuannvm/jira-tracker/internal/config"
	"github.com/tuannvm/jira-tracker/internal/jira"
	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

// Tracker request actions.
const (
	ActionGet     = "get"
	ActionSearch  = "search"
	ActionComment = "comment"
	ActionUpdate  = "update"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 1 << 20

var (
	requestsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_tracker_agent_requests_total",
		Help: "Tracker requests handled by the agent by action and outcome",
	}, []string{"action", "outcome"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_tracker_webhook_events_total",
		Help: "Jira webhook events received by event type",
	}, []string{"event"})
)

// IssueService is the part of the issue tracker the agent drives.
type IssueService interface {
	GetIssue(ctx context.Context, u *url.URL) (*models.Issue, error)
	GetIssues(ctx context.Context, urls []*url.URL) ([]*models.Issue, error)
	SearchIssues(ctx context.Context, sc models.SearchCriteria) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) (*jira.AppliedOps, error)
	AddCommentToIssues(ctx context.Context, issues []*models.Issue, comment models.Comment) bool
}

// TrackerAgent serves tracker requests over A2A and receives Jira webhooks.
type TrackerAgent struct {
	cfg        *config.Config
	tracker    IssueService
	a2aServer  *server.A2AServer
	httpServer *http.Server
}

// NewTrackerAgent creates a TrackerAgent on top of tracker.
func NewTrackerAgent(cfg *config.Config, tracker IssueService) *TrackerAgent {
	return &TrackerAgent{cfg: cfg, tracker: tracker}
}

// Process implements the TaskProcessor interface
func (a *TrackerAgent) Process(ctx context.Context, taskID string, msg protocol.Message, handle taskmanager.TaskHandle) error {
	req, err := common.ExtractTrackerRequest(msg)
	if err != nil {
		return fmt.Errorf("failed to extract tracker request: %w", err)
	}
	logger := log.With("task", taskID, "action", req.Action)

	if err := handle.UpdateStatus(protocol.TaskState("working"), nil); err != nil {
		logger.Warnf("Failed to update task status: %v", err)
	}

	resp, err := a.Handle(ctx, req)
	if err != nil {
		logger.Errorf("Tracker request failed: %v", err)
		failMsg := &protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(err.Error())}}
		if uerr := handle.UpdateStatus(protocol.TaskState("failed"), failMsg); uerr != nil {
			logger.Warnf("Failed to update task status: %v", uerr)
		}
		return err
	}

	dataPart := protocol.DataPart{
		Type: "data",
		Data: resp,
		Metadata: map[string]interface{}{
			"content-type": "application/json",
		},
	}
	artifact := protocol.Artifact{
		Name:        common.StringPtr(req.Action),
		Description: common.StringPtr("Tracker response"),
		Parts:       []protocol.Part{&dataPart},
	}
	if err := handle.AddArtifact(artifact); err != nil {
		logger.Warnf("Failed to add artifact: %v", err)
	}

	doneMsg := &protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(resp.Message)}}
	if err := handle.UpdateStatus(protocol.TaskState("completed"), doneMsg); err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	logger.Infof("Task completed: %s", resp.Message)
	return nil
}

// Handle executes a single tracker request.
func (a *TrackerAgent) Handle(ctx context.Context, req *models.TrackerRequest) (resp *models.TrackerResponse, err error) {
	defer func() {
		outcome := "success"
		if err != nil || (resp != nil && !resp.Succeeded) {
			outcome = "failure"
		}
		requestsHandled.WithLabelValues(req.Action, outcome).Inc()
	}()

	switch req.Action {
	case ActionGet:
		return a.handleGet(ctx, req)
	case ActionSearch:
		return a.handleSearch(ctx, req)
	case ActionComment:
		return a.handleComment(ctx, req)
	case ActionUpdate:
		return a.handleUpdate(ctx, req)
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
}

func (a *TrackerAgent) handleGet(ctx context.Context, req *models.TrackerRequest) (*models.TrackerResponse, error) {
	urls, err := parseURLs(req.URLs)
	if err != nil {
		return nil, err
	}
	issues, err := a.tracker.GetIssues(ctx, urls)
	if err != nil {
		return nil, err
	}
	return &models.TrackerResponse{
		Action:    req.Action,
		Issues:    issues,
		Succeeded: true,
		Message:   fmt.Sprintf("Fetched %d of %d issues", len(issues), len(urls)),
	}, nil
}

func (a *TrackerAgent) handleSearch(ctx context.Context, req *models.TrackerRequest) (*models.TrackerResponse, error) {
	var opts []models.SearchOption
	if req.Product != "" {
		opts = append(opts, models.WithProduct(req.Product))
	}
	if req.Release != "" {
		opts = append(opts, models.WithRelease(models.Release{Version: req.Release}))
	}
	if req.Status != "" {
		opts = append(opts, models.WithStatus(req.Status))
	}
	if req.MaxResults > 0 {
		opts = append(opts, models.WithMaxResults(req.MaxResults))
	}
	issues, err := a.tracker.SearchIssues(ctx, models.NewSearchCriteria(opts...))
	if err != nil {
		return nil, err
	}
	return &models.TrackerResponse{
		Action:    req.Action,
		Issues:    issues,
		Succeeded: true,
		Message:   fmt.Sprintf("Found %d issues", len(issues)),
	}, nil
}

func (a *TrackerAgent) handleComment(ctx context.Context, req *models.TrackerRequest) (*models.TrackerResponse, error) {
	if req.Comment == nil || req.Comment.Body == "" {
		return nil, errors.New("comment body is required")
	}
	urls, err := parseURLs(req.URLs)
	if err != nil {
		return nil, err
	}
	issues := make([]*models.Issue, 0, len(urls))
	for _, u := range urls {
		issues = append(issues, &models.Issue{URL: u})
	}
	ok := a.tracker.AddCommentToIssues(ctx, issues, *req.Comment)
	msg := fmt.Sprintf("Commented on %d issues", len(issues))
	if !ok {
		msg = "Some comments could not be posted"
	}
	return &models.TrackerResponse{Action: req.Action, Succeeded: ok, Message: msg}, nil
}

// handleUpdate moves every issue to the requested status. Failures are
// reported per issue and do not stop the remaining updates.
func (a *TrackerAgent) handleUpdate(ctx context.Context, req *models.TrackerRequest) (*models.TrackerResponse, error) {
	if req.Status == "" {
		return nil, errors.New("status is required")
	}
	urls, err := parseURLs(req.URLs)
	if err != nil {
		return nil, err
	}

	resp := &models.TrackerResponse{Action: req.Action, Succeeded: true}
	var failures []string
	for _, u := range urls {
		issue, err := a.tracker.GetIssue(ctx, u)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", u, err))
			continue
		}
		issue.Status = req.Status
		if _, err := a.tracker.UpdateIssue(ctx, issue); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", u, err))
			continue
		}
		resp.Issues = append(resp.Issues, issue)
	}

	resp.Message = fmt.Sprintf("Updated %d of %d issues", len(resp.Issues), len(urls))
	if len(failures) > 0 {
		resp.Succeeded = false
		resp.Message += "; " + strings.Join(failures, "; ")
	}
	return resp, nil
}

func parseURLs(raw []string) ([]*url.URL, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one issue URL is required")
	}
	urls := make([]*url.URL, 0, len(raw))
	for _, r := range raw {
		u, err := url.Parse(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("invalid issue URL %q: %w", r, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// HandleWebhook receives a Jira webhook, re-reads the issue it refers to and
// returns it.
func (a *TrackerAgent) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := log.With("request", requestID)
	start := time.Now()

	if r.Method != http.MethodPost {
		common.ReturnJSONError(w, http.StatusMethodNotAllowed, "Method not allowed: Only POST requests are accepted")
		return
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		common.ReturnJSONError(w, http.StatusUnsupportedMediaType, "Content type must be application/json")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.ReturnJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	if len(body) == 0 {
		common.ReturnJSONError(w, http.StatusBadRequest, "Request body cannot be empty")
		return
	}

	event, err := jira.ParseWebhook(body)
	if err != nil {
		logger.Warnf("Rejected webhook: %v", err)
		common.ReturnJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	webhookEvents.WithLabelValues(event.Event).Inc()
	logger.Infof("Webhook %s for %s", event.Event, event.Key)

	resp := map[string]interface{}{
		"status":    "success",
		"requestId": requestID,
		"event":     event,
	}
	if event.Event != "deleted" {
		issue, err := a.tracker.GetIssue(r.Context(), a.eventIssueURL(event))
		if err != nil {
			logger.Errorf("Failed to read %s: %v", event.Key, err)
			status := http.StatusBadGateway
			if errors.Is(err, jira.ErrNotFound) {
				status = http.StatusNotFound
			}
			common.ReturnJSONError(w, status, fmt.Sprintf("Failed to read issue %s: %v", event.Key, err))
			return
		}
		resp["issue"] = issue
	}

	common.ReturnJSON(w, http.StatusOK, resp)
	logger.Debugf("Webhook processed in %v", time.Since(start))
}

// eventIssueURL prefers the self link of the event and otherwise builds the
// browse URL on the configured Jira host.
func (a *TrackerAgent) eventIssueURL(event *jira.IssueEvent) *url.URL {
	if event.IssueURL != nil {
		return event.IssueURL
	}
	u, err := url.Parse(a.cfg.JiraBaseURL + jira.BrowseIssuePath + event.Key)
	if err != nil {
		return &url.URL{Path: jira.BrowseIssuePath + event.Key}
	}
	return u
}

// Routes returns the HTTP handler for webhooks and metrics.
func (a *TrackerAgent) Routes() (http.Handler, error) {
	provider, err := common.NewAuthProvider(a.cfg.AuthType, a.cfg.JWTSecret, a.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/webhook", common.AuthMiddleware(provider, http.HandlerFunc(a.HandleWebhook)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		common.ReturnJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux, nil
}

// SetupA2AServer creates the A2A server advertising the tracker skills.
func (a *TrackerAgent) SetupA2AServer() error {
	srv, err := common.SetupServer(common.SetupServerOptions{
		AgentName:    a.cfg.AgentName,
		AgentVersion: a.cfg.AgentVersion,
		AgentURL:     a.cfg.AgentURL,
		AuthType:     a.cfg.AuthType,
		JWTSecret:    a.cfg.JWTSecret,
		APIKey:       a.cfg.APIKey,
		Processor:    a,
		Skills:       trackerSkills(),
	})
	if err != nil {
		return err
	}
	a.a2aServer = srv
	return nil
}

// SetupHTTPServer creates the webhook and metrics server.
func (a *TrackerAgent) SetupHTTPServer() error {
	handler, err := a.Routes()
	if err != nil {
		return err
	}
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.ServerHost, a.cfg.WebhookPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// StartA2AServer runs the A2A server until ctx is done.
func (a *TrackerAgent) StartA2AServer(ctx context.Context) error {
	if a.a2aServer == nil {
		return errors.New("A2A server is not set up")
	}
	return common.StartServer(ctx, a.a2aServer, a.cfg.ServerHost, a.cfg.ServerPort)
}

// StartHTTPServer runs the webhook server until ctx is done.
func (a *TrackerAgent) StartHTTPServer(ctx context.Context) error {
	if a.httpServer == nil {
		return errors.New("HTTP server is not set up")
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Webhook endpoint available at http://%s/webhook", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.httpServer.Shutdown(shutdownCtx)
}

func trackerSkills() []server.AgentSkill {
	skill := func(id, name, description string, examples ...string) server.AgentSkill {
		return server.AgentSkill{
			ID:          id,
			Name:        name,
			Description: common.StringPtr(description),
			Examples:    examples,
			InputModes:  []string{"text", "data"},
			OutputModes: []string{"data"},
		}
	}
	example := func(req models.TrackerRequest) string {
		b, _ := json.Marshal(req)
		return string(b)
	}
	return []server.AgentSkill{
		skill(ActionGet, "Get issues", "Fetch issues by browse or API URL",
			example(models.TrackerRequest{Action: ActionGet, URLs: []string{"https://issues.redhat.com/browse/WFLY-1"}})),
		skill(ActionSearch, "Search issues", "Search issues by product, release and status",
			example(models.TrackerRequest{Action: ActionSearch, Product: "JBEAP", Release: "7.4.1.GA"})),
		skill(ActionComment, "Comment on issues", "Post the same comment on several issues",
			example(models.TrackerRequest{Action: ActionComment, URLs: []string{"https://issues.redhat.com/browse/WFLY-1"}, Comment: &models.Comment{Body: "Fixed upstream"}})),
		skill(ActionUpdate, "Update status", "Move issues to a new status through the workflow",
			example(models.TrackerRequest{Action: ActionUpdate, URLs: []string{"https://issues.redhat.com/browse/WFLY-1"}, Status: models.StatusAssigned})),
	}
}
