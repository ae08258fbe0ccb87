package ws

import (
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
)

type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgTransition MessageType = "transition"
	MsgHealth     MessageType = "health"
)

// WSMessage is the envelope for every frame. Seq increases by one per
// message broadcast by a Broadcaster, so a client can detect drops.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload any         `json:"payload"`
}

type SnapshotPayload struct {
	Snapshot snapshot.Snapshot    `json:"snapshot"`
	Health   sampler.HealthReport `json:"health"`
}

type TransitionPayload struct {
	Old     snapshot.Snapshot  `json:"old"`
	New     snapshot.Snapshot  `json:"new"`
	Changes severity.ChangeSet `json:"changes"`
}

type HealthPayload = sampler.HealthReport

// AllocateResponse answers GET /api/allocate.
type AllocateResponse struct {
	Bytes uint64 `json:"bytes"`
	OK    bool   `json:"ok"`
}
