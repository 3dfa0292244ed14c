package dispatch

import (
	"context"

	"github.com/m3rciful/timebot/core/state"
)

// Kind tells the dispatcher what an inbound request carries.
type Kind int

const (
	KindText Kind = iota
	KindCommand
	KindCallback
	KindVoice
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCallback:
		return "callback"
	case KindVoice:
		return "voice"
	default:
		return "text"
	}
}

// Choice is one selectable button.
type Choice struct {
	Label string
	Data  string
}

// Reply is a transport-neutral outbound message.
// Choices render one per row; Actions render together on a final row.
type Reply struct {
	Text     string
	Markdown bool
	Choices  []Choice
	Actions  []Choice
}

// Replier delivers replies to the conversation a request came from.
type Replier interface {
	Reply(ctx context.Context, r Reply) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, r Reply) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, r Reply) error { return f(ctx, r) }

// Audio is a voice or audio attachment whose bytes are fetched on demand.
type Audio struct {
	MIME     string
	Duration int
	Load     func(ctx context.Context) ([]byte, error)
}

// Request is one inbound update reduced to what handlers need.
type Request struct {
	Key     state.Key
	Kind    Kind
	Command string
	Args    string
	Text    string
	// Callback holds the button data of a callback request.
	Callback string
	Audio    *Audio
	Replier  Replier
}

// Reply sends r through the request's replier. A request without replier drops replies.
func (req *Request) Reply(ctx context.Context, r Reply) error {
	if req == nil || req.Replier == nil {
		return nil
	}
	return req.Replier.Reply(ctx, r)
}

// Send replies with plain text.
func (req *Request) Send(ctx context.Context, text string) error {
	return req.Reply(ctx, Reply{Text: text})
}

// SendMD replies with MarkdownV2 text.
func (req *Request) SendMD(ctx context.Context, text string) error {
	return req.Reply(ctx, Reply{Text: text, Markdown: true})
}

// Input returns the free text carried by the request: the message text or the command arguments.
func (req *Request) Input() string {
	if req.Kind == KindCommand {
		return req.Args
	}
	return req.Text
}
