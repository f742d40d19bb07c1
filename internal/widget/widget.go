// Package widget holds the chat conversation state shown to the user: the
// ordered messages and whether a reply is being streamed.
package widget

import (
	"strings"

	"support-chat/internal/models"
)

const (
	Greeting          = "Hi! I'm the Headstarter support assistant. How can I help you today?"
	ErrorMessage      = "I'm sorry, but I encountered an error. Please try again later."
	InterruptedNotice = "\n\n[Response interrupted. Please try again.]"
)

type Option func(*Widget)

// WithOnChange registers a callback invoked after every change to the
// message list.
func WithOnChange(fn func([]models.ChatMessage)) Option {
	return func(w *Widget) { w.onChange = fn }
}

// Widget is not safe for concurrent use; a single event loop owns it.
type Widget struct {
	messages []models.ChatMessage
	loading  bool
	received bool
	decoder  Decoder
	onChange func([]models.ChatMessage)
}

func New(opts ...Option) *Widget {
	w := &Widget{
		messages: []models.ChatMessage{{Role: models.RoleAssistant, Content: Greeting}},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Messages returns the current message list. Callers must not modify it;
// every change produces a new slice.
func (w *Widget) Messages() []models.ChatMessage { return w.messages }

func (w *Widget) IsLoading() bool { return w.loading }

// Submit appends the user message and an empty assistant placeholder and
// returns the history to send. It returns false and changes nothing when the
// input is blank or a reply is already streaming.
func (w *Widget) Submit(input string) ([]models.ChatMessage, bool) {
	text := strings.TrimSpace(input)
	if text == "" || w.loading {
		return nil, false
	}

	history := make([]models.ChatMessage, len(w.messages), len(w.messages)+1)
	copy(history, w.messages)
	history = append(history, models.ChatMessage{Role: models.RoleUser, Content: text})

	next := make([]models.ChatMessage, len(history), len(history)+1)
	copy(next, history)
	next = append(next, models.ChatMessage{Role: models.RoleAssistant})

	w.loading = true
	w.received = false
	w.decoder = Decoder{}
	w.set(next)
	return history, true
}

// AppendChunk decodes p and extends the last message with the result.
func (w *Widget) AppendChunk(p []byte) {
	if !w.loading {
		return
	}
	w.appendText(w.decoder.Decode(p))
}

// Finish ends the current reply.
func (w *Widget) Finish() {
	if !w.loading {
		return
	}
	w.appendText(w.decoder.Flush())
	w.loading = false
}

// Fail ends the current reply after an error. An empty placeholder is
// replaced by ErrorMessage; partial content is kept and marked with
// InterruptedNotice.
func (w *Widget) Fail() {
	if !w.loading {
		return
	}
	w.appendText(w.decoder.Flush())
	w.loading = false

	last := len(w.messages) - 1
	next := make([]models.ChatMessage, len(w.messages))
	copy(next, w.messages)
	if w.received {
		next[last].Content += InterruptedNotice
	} else {
		next[last] = models.ChatMessage{Role: models.RoleAssistant, Content: ErrorMessage}
	}
	w.set(next)
}

func (w *Widget) appendText(text string) {
	if text == "" {
		return
	}
	w.received = true

	last := len(w.messages) - 1
	next := make([]models.ChatMessage, len(w.messages))
	copy(next, w.messages)
	next[last].Content += text
	w.set(next)
}

func (w *Widget) set(messages []models.ChatMessage) {
	w.messages = messages
	if w.onChange != nil {
		w.onChange(messages)
	}
}
