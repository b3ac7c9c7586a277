package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TemplateResponse — template из API.
type TemplateResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Stages      []any  `json:"stages,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	ID              string `json:"id"`
	TemplateID      string `json:"template_id,omitempty"`
	OriginalPrompt  string `json:"original_prompt"`
	WorkspacePath   string `json:"workspace_path,omitempty"`
	Status          string `json:"status"`
	CancelRequested bool   `json:"cancel_requested,omitempty"`
	StartedAt       string `json:"started_at,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// StageResponse — stage из API.
type StageResponse struct {
	ID         string `json:"id"`
	PipelineID string `json:"pipeline_id"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
	Status     string `json:"status"`
}

// JobResponse — job из API.
type JobResponse struct {
	ID                string `json:"id"`
	PipelineID        string `json:"pipeline_id"`
	StageID           string `json:"stage_id"`
	ParentJobID       string `json:"parent_job_id,omitempty"`
	Role              string `json:"role"`
	Prompt            string `json:"prompt"`
	Status            string `json:"status"`
	RetryCount        int    `json:"retry_count"`
	MaxRetries        int    `json:"max_retries"`
	RegressionContext string `json:"regression_context,omitempty"`
	Output            string `json:"output,omitempty"`
	TerminationReason string `json:"termination_reason,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// ActionResponse — запись лога выполнения job из API.
type ActionResponse struct {
	JobID     string `json:"job_id"`
	Iteration int    `json:"iteration"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ArtifactResponse — артефакт из API.
type ArtifactResponse struct {
	ID        string `json:"id"`
	JobID     string `json:"job_id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	FilePath  string `json:"file_path,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID             string `json:"id"`
	TemplateID     string `json:"template_id"`
	Name           string `json:"name,omitempty"`
	CronExpr       string `json:"cron_expr,omitempty"`
	IntervalSec    int    `json:"interval_sec,omitempty"`
	Prompt         string `json:"prompt"`
	WorkspacePath  string `json:"workspace_path,omitempty"`
	Enabled        bool   `json:"enabled"`
	NextDueAt      string `json:"next_due_at,omitempty"`
	LastRunAt      string `json:"last_run_at,omitempty"`
	LastPipelineID string `json:"last_pipeline_id,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// --- Request types ---

// InstantiateRequest — запуск pipeline из template.
type InstantiateRequest struct {
	Prompt        string   `json:"prompt"`
	WorkspacePath string   `json:"workspace_path,omitempty"`
	ExcludeStages []string `json:"exclude_stages,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name          string `json:"name"`
	CronExpr      string `json:"cron_expr,omitempty"`
	IntervalSec   int    `json:"interval_sec,omitempty"`
	Prompt        string `json:"prompt"`
	WorkspacePath string `json:"workspace_path,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name          *string `json:"name,omitempty"`
	CronExpr      *string `json:"cron_expr,omitempty"`
	IntervalSec   *int    `json:"interval_sec,omitempty"`
	Prompt        *string `json:"prompt,omitempty"`
	WorkspacePath *string `json:"workspace_path,omitempty"`
}

// ListPipelinesOpts — параметры фильтрации pipelines.
type ListPipelinesOpts struct {
	TemplateID string
	Status     string
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Colony API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Templates ---

// ListTemplates возвращает все templates.
func (c *Client) ListTemplates() ([]TemplateResponse, error) {
	var templates []TemplateResponse
	err := c.list("/api/v1/templates", nil, &templates)
	return templates, err
}

// CreateTemplate создаёт template из сырого JSON-описания.
func (c *Client) CreateTemplate(spec json.RawMessage) (*TemplateResponse, error) {
	var template TemplateResponse
	err := c.postRaw("/api/v1/templates", spec, &template)
	return &template, err
}

// GetTemplate возвращает template по ID.
func (c *Client) GetTemplate(id string) (*TemplateResponse, error) {
	var template TemplateResponse
	err := c.get("/api/v1/templates/"+id, &template)
	return &template, err
}

// DeleteTemplate удаляет template.
func (c *Client) DeleteTemplate(id string) error {
	return c.delete("/api/v1/templates/" + id)
}

// --- Pipelines ---

// StartPipeline инстанцирует pipeline из template.
func (c *Client) StartPipeline(templateID string, req InstantiateRequest) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.post("/api/v1/templates/"+templateID+"/pipelines", req, &pipeline)
	return &pipeline, err
}

// ListPipelines возвращает список pipelines с фильтрацией.
func (c *Client) ListPipelines(opts ListPipelinesOpts) ([]PipelineResponse, error) {
	params := url.Values{}
	if opts.TemplateID != "" {
		params.Set("template_id", opts.TemplateID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", params, &pipelines)
	return pipelines, err
}

// GetPipeline возвращает pipeline по ID.
func (c *Client) GetPipeline(id string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.get("/api/v1/pipelines/"+id, &pipeline)
	return &pipeline, err
}

// CancelPipeline запрашивает отмену pipeline.
func (c *Client) CancelPipeline(id string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.post("/api/v1/pipelines/"+id+"/cancel", nil, &pipeline)
	return &pipeline, err
}

// ListStages возвращает stages pipeline.
func (c *Client) ListStages(pipelineID string) ([]StageResponse, error) {
	var stages []StageResponse
	err := c.list("/api/v1/pipelines/"+pipelineID+"/stages", nil, &stages)
	return stages, err
}

// ListJobs возвращает jobs pipeline.
func (c *Client) ListJobs(pipelineID string) ([]JobResponse, error) {
	var jobs []JobResponse
	err := c.list("/api/v1/pipelines/"+pipelineID+"/jobs", nil, &jobs)
	return jobs, err
}

// --- Jobs ---

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// ListActions возвращает лог выполнения job.
func (c *Client) ListActions(jobID string) ([]ActionResponse, error) {
	var actions []ActionResponse
	err := c.list("/api/v1/jobs/"+jobID+"/actions", nil, &actions)
	return actions, err
}

// ListArtifacts возвращает артефакты job.
func (c *Client) ListArtifacts(jobID string) ([]ArtifactResponse, error) {
	var artifacts []ArtifactResponse
	err := c.list("/api/v1/jobs/"+jobID+"/artifacts", nil, &artifacts)
	return artifacts, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если templateID не пустой — фильтрует.
func (c *Client) ListSchedules(templateID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if templateID != "" {
		params.Set("template_id", templateID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для template.
func (c *Client) CreateSchedule(templateID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/templates/"+templateID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

// postRaw отправляет уже сериализованное тело без повторного маршалинга.
func (c *Client) postRaw(path string, body json.RawMessage, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
