// Package channel holds the platform adapters: each one turns its
// platform's events into normalized requests, runs them through a
// fresh dispatcher, and renders the response stream back to the wire.
package channel

import (
	"fmt"
	"strings"

	"multibot/internal/dispatch"
	"multibot/internal/message"
)

// Factory builds a fresh dispatcher for one inbound event. Dispatchers
// are cheap; constructing one per event is how the active-session set
// gets reloaded.
type Factory func() (*dispatch.Dispatcher, error)

// NewRequest builds a plain text request for one inbound event.
func NewRequest(platform, userID, msg string) *message.Request {
	return &message.Request{Platform: platform, UserID: userID, Msg: msg}
}

// Exec performs one platform function call against the adapter's
// native API and returns its result.
type Exec func(call *message.PlatformCall) any

// Deliver drains a response stream: ordinary responses go to send,
// platform calls run through exec and their results are fed back to
// the dispatcher, whose follow-up responses join the queue. A nil exec
// answers every call with an unsupported notice.
func Deliver(d *dispatch.Dispatcher, responses []message.Response, send func(message.Response), exec Exec) {
	queue := responses
	for len(queue) > 0 {
		resp := queue[0]
		queue = queue[1:]

		call, ok := resp.(*message.PlatformCall)
		if !ok {
			send(resp)
			continue
		}
		var result any
		if exec != nil {
			result = exec(call)
		} else {
			result = fmt.Sprintf("platform call %s is not supported here", call.Func)
		}
		queue = append(queue, d.ProcessOutput(result)...)
	}
}

// RenderText flattens one response to plain text, for adapters whose
// wire format is just text (console, webhook).
func RenderText(resp message.Response) string {
	switch v := resp.(type) {
	case *message.Msg:
		if len(v.AtList) > 0 {
			return "@" + strings.Join(v.AtList, " @") + " " + v.Text
		}
		return v.Text
	case *message.GroupMsg:
		text := v.Text
		if len(v.AtList) > 0 {
			text = "@" + strings.Join(v.AtList, " @") + " " + text
		}
		return fmt.Sprintf("[group %s] %s", v.GroupID, text)
	case *message.Image:
		return "[image] " + v.File
	case *message.GroupImage:
		return fmt.Sprintf("[group %s] [image] %s", v.GroupID, v.File)
	case *message.Music:
		return "[music] " + v.Info()
	case *message.PlatformCall:
		return fmt.Sprintf("[call] %s(%v)", v.Func, v.Args)
	default:
		return fmt.Sprintf("%#v", resp)
	}
}
