// Package turn executes one complete engine-driven conversation turn per
// inbound utterance: resolve the session, run the engine against its context,
// persist what comes back.
package turn

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/witbridge/nestbot/bot/contract"
	turnnodex "github.com/witbridge/nestbot/bot/nodes"
	statex "github.com/witbridge/nestbot/bot/state"
)

var (
	ErrInvalidMessage = turnnodex.ErrInvalidMessage
	ErrInvalidSession = turnnodex.ErrInvalidSession
)

type Service struct {
	store  statex.Store
	engine contractx.Engine
	locks  *statex.Locks

	graphRunner compose.Runnable[turnnodex.GraphInput, turnnodex.GraphOutput]

	now func() time.Time
}

func New(store statex.Store, engine contractx.Engine) (*Service, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if engine == nil {
		return nil, errors.New("dialogue engine is required")
	}

	s := &Service{
		store:  store,
		engine: engine,
		locks:  statex.NewLocks(),
		now:    time.Now,
	}

	graphRunner, err := s.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// HandleMessage runs one turn for the user's utterance. Turns for the same
// session are serialized; duplicate webhook deliveries cannot interleave
// context reads and writes.
func (s *Service) HandleMessage(ctx context.Context, userID, text string) error {
	sessionID, err := s.store.FindOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	release := s.locks.Acquire(sessionID)
	defer release()

	_, err = s.graphRunner.Invoke(ctx, turnnodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	return err
}
