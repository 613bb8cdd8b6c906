package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskListingChanged is enqueued by the ingestion process whenever a
// listing is created, updated or withdrawn.
const TaskListingChanged = "listings.changed"

// TaskPrecompute warms the comparables cache for one listing.
const TaskPrecompute = "comparables.precompute"

type ListingChangedPayload struct {
	ListingID string `json:"listingId"`
	Make      string `json:"make"`
	Model     string `json:"model"`
}

type PrecomputePayload struct {
	ListingID string `json:"listingId"`
	Count     int    `json:"count,omitempty"`
}

func NewListingChangedTask(payload ListingChangedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskListingChanged, data), nil
}

func ParseListingChangedPayload(task *asynq.Task) (ListingChangedPayload, error) {
	var payload ListingChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ListingChangedPayload{}, err
	}
	return payload, nil
}

func NewPrecomputeTask(payload PrecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPrecompute, data), nil
}

func ParsePrecomputePayload(task *asynq.Task) (PrecomputePayload, error) {
	var payload PrecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PrecomputePayload{}, err
	}
	return payload, nil
}
