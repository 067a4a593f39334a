package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// actorIDCounter generates unique actor IDs
var actorIDCounter uint32

// actor is the mailbox loop behind a Remote.
type actor[C any] struct {
	id      ActorID
	name    string
	handler Handler[C]
	log     *logrus.Entry

	// Channel for receiving commands
	mailbox chan C

	// quit is closed by Stop, done is closed once the loop has exited
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	// Atomic counters for statistics
	state             int32 // ActorState
	messagesProcessed uint64
	createdAt         time.Time
	lastMessageAt     int64 // Unix timestamp

	opts ActorOptions
}

// Remote is a cloneable handle to a running actor. The zero Remote refers
// to no actor and fails every Send with ErrActorGone.
type Remote[C any] struct {
	a *actor[C]
}

// Spawn starts a new actor draining its mailbox into handler and returns
// its Remote.
func Spawn[C any](handler Handler[C], opts ActorOptions) Remote[C] {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultActorOptions().MailboxSize
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultActorOptions().ProcessTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	id := ActorID(atomic.AddUint32(&actorIDCounter, 1))
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("actor-%d", id)
	}

	a := &actor[C]{
		id:        id,
		name:      name,
		handler:   handler,
		log:       logger.WithFields(logrus.Fields{"actor": name, "actor_id": id}),
		mailbox:   make(chan C, opts.MailboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		createdAt: time.Now(),
		opts:      opts,
	}
	atomic.StoreInt32(&a.state, int32(ActorStateIdle))

	go a.messageLoop()

	return Remote[C]{a: a}
}

// ID returns the unique identifier of the actor.
func (r Remote[C]) ID() ActorID {
	if r.a == nil {
		return 0
	}
	return r.a.id
}

// Name returns the actor name.
func (r Remote[C]) Name() string {
	if r.a == nil {
		return ""
	}
	return r.a.name
}

// Send enqueues a command, blocking while the mailbox is full. It fails
// with ErrActorGone once the actor is stopping.
func (r Remote[C]) Send(cmd C) error {
	a := r.a
	if a == nil {
		return ErrActorGone
	}
	if a.stopping() {
		return fmt.Errorf("%s: %w", a.name, ErrActorGone)
	}

	a.bind(cmd)

	select {
	case a.mailbox <- cmd:
		return nil
	case <-a.quit:
		return fmt.Errorf("%s: %w", a.name, ErrActorGone)
	}
}

// TrySend enqueues a command without blocking.
func (r Remote[C]) TrySend(cmd C) error {
	a := r.a
	if a == nil {
		return ErrActorGone
	}
	if a.stopping() {
		return fmt.Errorf("%s: %w", a.name, ErrActorGone)
	}

	a.bind(cmd)

	select {
	case a.mailbox <- cmd:
		return nil
	case <-a.quit:
		return fmt.Errorf("%s: %w", a.name, ErrActorGone)
	default:
		return fmt.Errorf("%s: %w", a.name, ErrMailboxFull)
	}
}

// Stop asks the actor to finish the command in progress, settles every
// command still queued with ErrActorGone and waits for the loop to exit.
// Stop must not be called from the actor's own handler.
func (r Remote[C]) Stop() error {
	a := r.a
	if a == nil {
		return ErrActorGone
	}
	a.quitOnce.Do(func() {
		atomic.StoreInt32(&a.state, int32(ActorStateStopping))
		close(a.quit)
	})
	<-a.done
	return nil
}

// Done returns a channel closed once the actor has exited.
func (r Remote[C]) Done() <-chan struct{} {
	if r.a == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return r.a.done
}

// Stats returns current runtime statistics for the actor.
func (r Remote[C]) Stats() ActorStats {
	a := r.a
	if a == nil {
		return ActorStats{State: ActorStateStopped}
	}

	lastMsg := atomic.LoadInt64(&a.lastMessageAt)
	var lastMessageAt time.Time
	if lastMsg > 0 {
		lastMessageAt = time.Unix(lastMsg, 0)
	}

	return ActorStats{
		ID:                a.id,
		Name:              a.name,
		State:             ActorState(atomic.LoadInt32(&a.state)),
		MessagesProcessed: atomic.LoadUint64(&a.messagesProcessed),
		MailboxSize:       len(a.mailbox),
		CreatedAt:         a.createdAt,
		LastMessageAt:     lastMessageAt,
	}
}

func (a *actor[C]) stopping() bool {
	state := ActorState(atomic.LoadInt32(&a.state))
	return state == ActorStateStopping || state == ActorStateStopped
}

// bind ties an embedded reply to this actor's lifetime.
func (a *actor[C]) bind(cmd C) {
	if s, ok := any(cmd).(settler); ok {
		s.attach(a.done)
	}
}

// messageLoop is the main processing loop for the actor.
func (a *actor[C]) messageLoop() {
	defer close(a.done)
	defer func() {
		if stopper, ok := a.handler.(Stopper); ok {
			stopper.OnStop()
		}
		atomic.StoreInt32(&a.state, int32(ActorStateStopped))
	}()

	for {
		// a pending quit wins over queued commands
		select {
		case <-a.quit:
			a.drainMailbox()
			return
		default:
		}

		select {
		case cmd := <-a.mailbox:
			a.processMessage(cmd)
		case <-a.quit:
			a.drainMailbox()
			return
		}
	}
}

// processMessage handles a single command.
func (a *actor[C]) processMessage(cmd C) {
	atomic.CompareAndSwapInt32(&a.state, int32(ActorStateIdle), int32(ActorStateRunning))
	defer atomic.CompareAndSwapInt32(&a.state, int32(ActorStateRunning), int32(ActorStateIdle))

	atomic.AddUint64(&a.messagesProcessed, 1)
	atomic.StoreInt64(&a.lastMessageAt, time.Now().Unix())

	ctx, cancel := a.processContext()
	defer cancel()

	err := a.handle(ctx, cmd)

	if s, ok := any(cmd).(settler); ok {
		if err != nil {
			s.settle(err)
		} else {
			s.settle(fmt.Errorf("%s: reply dropped: %w", a.name, ErrActorGone))
		}
	}
	if err != nil {
		a.log.WithError(err).Debugf("command %T failed", cmd)
	}
}

// processContext bounds one Handle call. A zero ProcessTimeout means no bound.
func (a *actor[C]) processContext() (context.Context, context.CancelFunc) {
	if a.opts.ProcessTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), a.opts.ProcessTimeout)
}

// handle runs the handler, turning a panic into an error.
func (a *actor[C]) handle(ctx context.Context, cmd C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("panic", r).Errorf("handler panicked on %T", cmd)
			err = fmt.Errorf("%s: handler panic: %v", a.name, r)
		}
	}()
	return a.handler.Handle(ctx, cmd)
}

// drainMailbox settles commands that will never be processed.
func (a *actor[C]) drainMailbox() {
	for {
		select {
		case cmd := <-a.mailbox:
			if s, ok := any(cmd).(settler); ok {
				s.settle(fmt.Errorf("%s: %w", a.name, ErrActorGone))
			}
		default:
			return
		}
	}
}
