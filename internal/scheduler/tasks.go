package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskSearchLogged = "search.logged"

type SearchLoggedPayload struct {
	Query          string    `json:"query"`
	Source         string    `json:"source"`
	ResultCount    int64     `json:"resultCount"`
	CityID         int64     `json:"cityId"`
	TimingMs       int64     `json:"timingMs"`
	DegradedReason string    `json:"degradedReason,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

func NewSearchLoggedTask(payload SearchLoggedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSearchLogged, data), nil
}

func ParseSearchLoggedPayload(task *asynq.Task) (SearchLoggedPayload, error) {
	var payload SearchLoggedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SearchLoggedPayload{}, err
	}
	return payload, nil
}
