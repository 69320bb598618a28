package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// CronTool lets an agent create, list, and remove scheduled jobs. Jobs are
// created without an agent ID, and list returns every job in the store.
type CronTool struct {
	cron store.CronStore
}

func NewCronTool(cron store.CronStore) *CronTool {
	return &CronTool{cron: cron}
}

func (t *CronTool) Name() string        { return "cron" }
func (t *CronTool) Description() string { return "Manage scheduled jobs: create, list, or delete a cron job that replays a message to you later." }

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"create", "list", "delete"},
			},
			"schedule": map[string]interface{}{"type": "string", "description": "cron expression, required for create"},
			"message":  map[string]interface{}{"type": "string", "description": "message to replay on schedule, required for create"},
			"name":     map[string]interface{}{"type": "string", "description": "human-readable job name"},
			"id":       map[string]interface{}{"type": "string", "description": "job id, required for delete"},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)

	switch action {
	case "create":
		message, _ := args["message"].(string)
		schedule, _ := args["schedule"].(string)
		if message == "" || schedule == "" {
			return ErrorResult("schedule and message are required to create a job")
		}
		name, _ := args["name"].(string)
		if name == "" {
			name = "job"
		}
		job := &store.CronJob{
			Name:     name,
			Schedule: schedule,
			Payload:  store.CronPayload{Message: message},
			Enabled:  true,
		}
		created, err := t.cron.Create(job)
		if err != nil {
			return ErrorResult(fmt.Sprintf("failed to create job: %v", err)).WithError(err)
		}
		return SilentResult(fmt.Sprintf("Created cron job %s (%s)", created.ID, created.Schedule))

	case "list":
		jobs := t.cron.List("")
		if len(jobs) == 0 {
			return SilentResult("No scheduled jobs.")
		}
		b, _ := json.Marshal(jobs)
		return NewResult(string(b))

	case "delete":
		id, _ := args["id"].(string)
		if id == "" {
			return ErrorResult("id is required to delete a job")
		}
		if err := t.cron.Delete(id); err != nil {
			return ErrorResult(fmt.Sprintf("failed to delete job: %v", err)).WithError(err)
		}
		return SilentResult(fmt.Sprintf("Deleted cron job %s", id))

	default:
		return ErrorResult(`action must be "create", "list", or "delete"`)
	}
}
