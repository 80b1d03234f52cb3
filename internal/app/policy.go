package app

import (
	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	CloseConn
)

// Policy decides what happens to a subscriber whose outbound queue is
// full. Whatever it decides, the sender's operation never blocks or
// errors on a slow subscriber.
type Policy interface {
	OnSlowConsumer(roomID domain.RoomID, conn core.ConnID, drops int) BackpressureAction
}

// ThresholdPolicy drops frames for a slow subscriber and closes the
// connection once the session has accumulated MaxDrops dropped frames.
type ThresholdPolicy struct {
	MaxDrops int
}

func (p ThresholdPolicy) OnSlowConsumer(_ domain.RoomID, _ core.ConnID, drops int) BackpressureAction {
	if p.MaxDrops > 0 && drops >= p.MaxDrops {
		return CloseConn
	}
	return DropFrame
}
