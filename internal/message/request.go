package message

import "fmt"

// Location is a geographic point payload attached to a Request.
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Request is one normalized inbound chat event. Adapters build exactly one
// per platform event; sessions and the dispatcher also derive synthetic
// follow-up Requests from an existing one via New.
//
// Platform and UserID are fixed at creation. Exactly one of the payload
// fields (Msg, Img, Aud, Loc) is expected to carry the primary content.
type Request struct {
	Platform string
	UserID   string
	GroupID  string // present for group-context messages

	Msg string
	Img string // media reference: remote URL or local path, adapter-resolved
	Aud string
	Loc *Location

	Attachment any // unused extension point

	// Echo marks a request that is itself an error/diagnostic notice.
	// Echo requests never continue an active session.
	Echo bool

	// FromScheduler marks a request that originates from a timer
	// rather than a live user.
	FromScheduler bool
}

// New derives a follow-up Request preserving platform, user, and group
// but carrying a fresh payload. Used to feed a session's own output back
// into the dispatcher as a new inbound event.
func (r *Request) New(msg, img string) *Request {
	return &Request{
		Platform: r.Platform,
		UserID:   r.UserID,
		GroupID:  r.GroupID,
		Msg:      msg,
		Img:      img,
	}
}

// Info returns a diagnostic description of the request.
func (r *Request) Info() string {
	return fmt.Sprintf("properties: %s, %s, %s\ncontent:\nmsg=%q,\nimg=%s,\naud=%s, loc=%v",
		r.Platform, r.UserID, r.GroupID, r.Msg, r.Img, r.Aud, r.Loc)
}
