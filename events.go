package wsx

import "sync"

// OpenHandler, CloseHandler, ErrorHandler and TopicHandler are the callback shapes the
// facade accepts (§6 "Emitted events", §9 "Dynamic event names... model as a mapping from
// topic strings to listener collections").
type OpenHandler func(id string)
type CloseHandler func(id string, err *CloseError)
type ErrorHandler func(id string, err error)
type TopicHandler func(id string, payload []byte)

// emitter is a string-keyed collection of application listeners: a map of topic ->
// listeners, so §4.3's path-derived topic routing has somewhere to dispatch to.
type emitter struct {
	mu sync.RWMutex

	open  []OpenHandler
	close []CloseHandler
	err   []ErrorHandler
	topic map[string][]TopicHandler
}

func newEmitter() *emitter {
	return &emitter{topic: make(map[string][]TopicHandler)}
}

func (e *emitter) onOpen(fn OpenHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = append(e.open, fn)
}

func (e *emitter) onClose(fn CloseHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.close = append(e.close, fn)
}

func (e *emitter) onError(fn ErrorHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = append(e.err, fn)
}

func (e *emitter) on(topic string, fn TopicHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topic[topic] = append(e.topic[topic], fn)
}

func (e *emitter) emitOpen(id string) {
	e.mu.RLock()
	handlers := append([]OpenHandler(nil), e.open...)
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(id)
	}
}

func (e *emitter) emitClose(id string, cerr *CloseError) {
	e.mu.RLock()
	handlers := append([]CloseHandler(nil), e.close...)
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(id, cerr)
	}
}

func (e *emitter) emitError(id string, err error) {
	e.mu.RLock()
	handlers := append([]ErrorHandler(nil), e.err...)
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(id, err)
	}
}

func (e *emitter) emitTopic(topic, id string, payload []byte) {
	e.mu.RLock()
	handlers := append([]TopicHandler(nil), e.topic[topic]...)
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(id, payload)
	}
}
