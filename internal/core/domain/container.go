package domain

import "time"

// ContainerStatus tracks where a container is in its lifecycle.
type ContainerStatus string

const (
	StatusBuilding ContainerStatus = "building"
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusRemoved  ContainerStatus = "removed"
)

// ContainerHandle ties a runtime container to the experiment it belongs to.
// The controller is the sole writer; at most one non-removed handle exists
// per experiment name.
type ContainerHandle struct {
	ExperimentName string          `json:"experiment_name"`
	ContainerID    string          `json:"container_id"`
	Status         ContainerStatus `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ContainerState is a point-in-time view from the runtime (inspect).
type ContainerState struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
