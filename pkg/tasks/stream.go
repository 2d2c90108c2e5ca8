package tasks

import "context"

// Subscribe returns a channel that receives the task's current state on
// every durable transition (including the initial snapshot), and is closed
// once the task reaches a terminal state. It backs the Task Engine's
// optional stream(taskId) operation — the websocket handler in
// cmd/noos-server relays these values to the client and closes the socket
// when the channel closes.
func (e *Engine) Subscribe(ctx context.Context, id string) (<-chan *Task, error) {
	task, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Task, 8)

	e.mu.Lock()
	e.subscribers[id] = append(e.subscribers[id], ch)
	e.mu.Unlock()

	ch <- task
	if isTerminal(task.Status) {
		e.mu.Lock()
		e.removeSubscriber(id, ch)
		e.mu.Unlock()
		close(ch)
	}

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		e.removeSubscriber(id, ch)
		e.mu.Unlock()
	}()

	return ch, nil
}

// publish pushes the task's current state to every live subscriber,
// closing and removing their channels once the task becomes terminal.
func (e *Engine) publish(id string) {
	task, err := e.Get(context.Background(), id)
	if err != nil {
		return
	}

	e.mu.Lock()
	subs := append([]chan *Task(nil), e.subscribers[id]...)
	e.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- task:
		default:
		}
	}

	if isTerminal(task.Status) {
		e.mu.Lock()
		for _, ch := range e.subscribers[id] {
			close(ch)
		}
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
}

// removeSubscriber drops one subscriber channel from id's list without
// closing it — a caller that closes the channel itself (Subscribe's
// terminal-snapshot path) removes it first so publish cannot close it again.
func (e *Engine) removeSubscriber(id string, target chan *Task) {
	subs := e.subscribers[id]
	for i, ch := range subs {
		if ch == target {
			e.subscribers[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(e.subscribers[id]) == 0 {
		delete(e.subscribers, id)
	}
}
