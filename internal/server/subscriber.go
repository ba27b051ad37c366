package server

import (
	"errors"
	"sync"
	"time"
)

var errSubscriberQueueFull = errors.New("subscriber send queue full")

// subscriberConn is the minimal connection surface the hub writes through.
// *websocket.Conn is adapted to it in the ws handler; tests use fakes.
type subscriberConn interface {
	Write(payload []byte) error
	SetWriteDeadline(deadline time.Time) error
	Close() error
}

// queueTelemetry receives send-queue depth observations.
type queueTelemetry interface {
	RecordSubscriberQueueDepth(depth int)
	RecordSubscriberQueueDrop(depth int)
}

type outboundFrame struct {
	deadline time.Time
	payload  []byte
}

// subscriber decouples broadcast fan-out from individual socket speed. Each
// subscriber drains its own bounded queue on its own goroutine, so a slow
// or dead screen fills its queue and loses frames without ever stalling the
// tick loop or the other screens. All writes flow through the queue, the
// connecting screen's first snapshot included, so frames reach the wire in
// enqueue order. Snapshots are full-state, so a dropped frame heals on the
// next tick.
type subscriber struct {
	conn      subscriberConn
	telemetry queueTelemetry
	onError   func(error)

	sendCh chan outboundFrame
	done   chan struct{}
	once   sync.Once
}

func newSubscriber(conn subscriberConn, telemetry queueTelemetry) *subscriber {
	s := &subscriber{
		conn:      conn,
		telemetry: telemetry,
		sendCh:    make(chan outboundFrame, subscriberSendQueueSize),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// EnqueueBroadcast stages a payload for asynchronous delivery. It never
// blocks: when the queue is full the frame is dropped and
// errSubscriberQueueFull returned.
func (s *subscriber) EnqueueBroadcast(deadline time.Time, payload []byte) error {
	select {
	case s.sendCh <- outboundFrame{deadline: deadline, payload: payload}:
		if s.telemetry != nil {
			s.telemetry.RecordSubscriberQueueDepth(len(s.sendCh))
		}
		return nil
	default:
		if s.telemetry != nil {
			s.telemetry.RecordSubscriberQueueDrop(len(s.sendCh))
		}
		return errSubscriberQueueFull
	}
}

// Close tears the subscriber down exactly once.
func (s *subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.sendCh:
			s.conn.SetWriteDeadline(frame.deadline)
			err := s.conn.Write(frame.payload)
			if s.telemetry != nil {
				s.telemetry.RecordSubscriberQueueDepth(len(s.sendCh))
			}
			if err != nil {
				if s.onError != nil {
					s.onError(err)
				}
				return
			}
		}
	}
}
