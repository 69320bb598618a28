package store

import "time"

// CronPayload is the message a scheduled job replays into the agent loop.
type CronPayload struct {
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"` // delivery channel, default "cron"
	To      string `json:"to,omitempty"`      // delivery chat/peer ID
	Deliver bool   `json:"deliver,omitempty"` // publish the result outbound
}

// CronJob is one scheduled job.
type CronJob struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	AgentID   string      `json:"agentId,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	Schedule  string      `json:"schedule"` // cron expression
	Payload   CronPayload `json:"payload"`
	Enabled   bool        `json:"enabled"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	LastRunAt *time.Time  `json:"lastRunAt,omitempty"`
	NextRunAt *time.Time  `json:"nextRunAt,omitempty"`
	LastError string      `json:"lastError,omitempty"`
}

// CronJobResult is what a job handler returns after an agent run.
type CronJobResult struct {
	Content      string `json:"content"`
	InputTokens  int64  `json:"inputTokens,omitempty"`
	OutputTokens int64  `json:"outputTokens,omitempty"`
}

// CronJobHandler executes one due job and returns its result.
type CronJobHandler func(job *CronJob) (*CronJobResult, error)

// CronStore manages scheduled jobs and runs them on their schedule.
type CronStore interface {
	Create(job *CronJob) (*CronJob, error)
	Get(id string) (*CronJob, error)
	List(agentID string) []CronJob
	Update(id string, updates map[string]any) (*CronJob, error)
	Delete(id string) error
	SetOnJob(handler CronJobHandler)
	Start() error
	Stop()
}
