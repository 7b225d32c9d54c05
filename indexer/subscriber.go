package indexer

// Subscriber dispatches service events to registered handlers.
type Subscriber struct {
	done     chan struct{}
	handlers map[string]func(Event)
}

// SubscriberOption registers a handler.
type SubscriberOption func(*Subscriber)

func on[T Event](name string, fn func(T)) SubscriberOption {
	return func(s *Subscriber) {
		s.handlers[name] = func(e Event) { fn(e.(T)) }
	}
}

// OnBackfillStarted sets the handler for BackfillStarted events
func OnBackfillStarted(fn func(BackfillStarted)) SubscriberOption {
	return on("backfill_started", fn)
}

// OnBackfillSyncCompleted sets the handler for BackfillSyncCompleted events
func OnBackfillSyncCompleted(fn func(BackfillSyncCompleted)) SubscriberOption {
	return on("backfill_sync", fn)
}

// OnBackfillDone sets the handler for BackfillDone events
func OnBackfillDone(fn func(BackfillDone)) SubscriberOption {
	return on("backfill_done", fn)
}

// OnBackfillError sets the handler for BackfillError events
func OnBackfillError(fn func(BackfillError)) SubscriberOption {
	return on("backfill_error", fn)
}

// OnPollingStarted sets the handler for PollingStarted events
func OnPollingStarted(fn func(PollingStarted)) SubscriberOption {
	return on("polling_started", fn)
}

// OnPollingSyncCompleted sets the handler for PollingSyncCompleted events
func OnPollingSyncCompleted(fn func(PollingSyncCompleted)) SubscriberOption {
	return on("polling_sync", fn)
}

// OnPollingShutdown sets the handler for PollingShutdown events
func OnPollingShutdown(fn func(PollingShutdown)) SubscriberOption {
	return on("polling_shutdown", fn)
}

// OnPollingError sets the handler for PollingError events
func OnPollingError(fn func(PollingError)) SubscriberOption {
	return on("polling_error", fn)
}

func eventName(ev Event) string {
	switch ev.(type) {
	case BackfillStarted:
		return "backfill_started"
	case BackfillSyncCompleted:
		return "backfill_sync"
	case BackfillDone:
		return "backfill_done"
	case BackfillError:
		return "backfill_error"
	case PollingStarted:
		return "polling_started"
	case PollingSyncCompleted:
		return "polling_sync"
	case PollingShutdown:
		return "polling_shutdown"
	case PollingError:
		return "polling_error"
	default:
		return ""
	}
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Events without a handler are dropped. The returned closer blocks until the
// events channel is closed and every event has been handled:
//
//	closer := indexer.NewSubscriber(events,
//	  indexer.OnBackfillDone(func(b indexer.BackfillDone) { ... }),
//	)
//	defer closer()
func NewSubscriber(events <-chan Event, opts ...SubscriberOption) func() {
	s := &Subscriber{
		done:     make(chan struct{}),
		handlers: make(map[string]func(Event)),
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			if handle, ok := s.handlers[eventName(ev)]; ok {
				handle(ev)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
