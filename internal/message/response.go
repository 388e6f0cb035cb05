package message

// Output is a value a session may emit from Handle: either a Response to
// deliver to the platform, or a *Request to re-inject into the dispatcher
// as a new inbound event.
type Output interface {
	isOutput()
}

func (*Request) isOutput() {}

// Response is one normalized outbound chat event. The set of variants is
// closed: Msg, GroupMsg, Image, GroupImage, Music, PlatformCall. Adapters
// switch exhaustively over the concrete types to render wire formats.
type Response interface {
	Output

	// Destination returns the user the response is addressed to, or ""
	// when it should go back to the requesting user. The dispatcher
	// back-fills empty destinations with the request's user id.
	Destination() string
	SetDestination(userID string)
}

// target carries the optional per-response destination override.
type target struct {
	ToUser string
}

func (t *target) isOutput() {}

func (t *target) Destination() string { return t.ToUser }

func (t *target) SetDestination(id string) { t.ToUser = id }

// Msg is a plain text message, optionally mentioning specific users.
type Msg struct {
	target
	Text   string
	AtList []string
}

// NewMsg builds a plain text response.
func NewMsg(text string) *Msg {
	return &Msg{Text: text}
}

// GroupMsg is a text message scoped to a group.
type GroupMsg struct {
	target
	GroupID string
	Text    string
	AtList  []string
}

// NewGroupMsg builds a group-scoped text response.
func NewGroupMsg(groupID, text string) *GroupMsg {
	return &GroupMsg{GroupID: groupID, Text: text}
}

// Image is a picture message referencing a local file or URL.
type Image struct {
	target
	File string
}

// NewImage builds an image response.
func NewImage(file string) *Image {
	return &Image{File: file}
}

// GroupImage is a picture message scoped to a group.
type GroupImage struct {
	target
	GroupID string
	File    string
}

// NewGroupImage builds a group-scoped image response.
func NewGroupImage(groupID, file string) *GroupImage {
	return &GroupImage{GroupID: groupID, File: file}
}

// Music is a media card pointing at a track on some music platform.
type Music struct {
	target
	Name     string
	Singer   string
	Link     string
	MusicID  string
	Platform string
}

// Info returns the card's text fallback for platforms without cards.
func (m *Music) Info() string {
	return m.Name + "\n" + m.Link
}

// PlatformCall asks the adapter to perform a privileged native platform
// action (for example banning a user) and report the result back through
// Dispatcher.ProcessOutput.
type PlatformCall struct {
	target
	Func string
	Args map[string]any
}

// NewPlatformCall builds a platform function call response.
func NewPlatformCall(fn string, args map[string]any) *PlatformCall {
	return &PlatformCall{Func: fn, Args: args}
}
