package protocol

import "github.com/MajorBarnulf/harsh/model"

// Event tags that have no command counterpart.
const (
	TypePong         = "pong"
	TypeUnauthorized = "unauthorized"
)

// PongEvent answers a Ping.
type PongEvent struct {
	Content string `json:"content"`
}

// AuthenticateEvent tells the requester whether it is now logged in.
type AuthenticateEvent struct {
	ID      model.Id `json:"id"`
	Success bool     `json:"success"`
}

// UnauthorizedEvent is sent back when a command was refused for lack of
// a login or a permission.
type UnauthorizedEvent struct {
	Command string `json:"command"`
}

type ChannelListEvent struct {
	Channels []model.Id `json:"channels"`
}

type ChannelCreateEvent struct {
	ID   model.Id `json:"id"`
	Name string   `json:"name"`
}

type ChannelDeleteEvent struct {
	ID model.Id `json:"id"`
}

// ChannelGetNameEvent carries a nil Name when the channel does not exist.
type ChannelGetNameEvent struct {
	ID   model.Id `json:"id"`
	Name *string  `json:"name"`
}

type ChannelSetNameEvent struct {
	ID   model.Id `json:"id"`
	Name string   `json:"name"`
}

type MessageListEvent struct {
	ChannelID model.Id   `json:"channel_id"`
	Messages  []model.Id `json:"messages"`
}

type MessageCreateEvent struct {
	ChannelID model.Id `json:"channel_id"`
	ID        model.Id `json:"id"`
	Content   string   `json:"content"`
}

type MessageDeleteEvent struct {
	ChannelID model.Id `json:"channel_id"`
	ID        model.Id `json:"id"`
}

// MessageGetContentEvent carries a nil Content when the message does not
// exist.
type MessageGetContentEvent struct {
	ChannelID model.Id `json:"channel_id"`
	ID        model.Id `json:"id"`
	Content   *string  `json:"content"`
}

type MessageSetContentEvent struct {
	ChannelID model.Id `json:"channel_id"`
	ID        model.Id `json:"id"`
	Content   string   `json:"content"`
}

type UserListEvent struct {
	Users []model.Id `json:"users"`
}

type UserCreateEvent struct {
	ID   model.Id `json:"id"`
	Name string   `json:"name"`
}

type UserDeleteEvent struct {
	ID model.Id `json:"id"`
}

type UserGetNameEvent struct {
	ID   model.Id `json:"id"`
	Name *string  `json:"name"`
}

type UserSetNameEvent struct {
	ID   model.Id `json:"id"`
	Name string   `json:"name"`
}

func (*PongEvent) Type() string { return TypePong }
func (*AuthenticateEvent) Type() string { return TypeAuthenticate }
func (*UnauthorizedEvent) Type() string { return TypeUnauthorized }
func (*ChannelListEvent) Type() string { return TypeChannelList }
func (*ChannelCreateEvent) Type() string { return TypeChannelCreate }
func (*ChannelDeleteEvent) Type() string { return TypeChannelDelete }
func (*ChannelGetNameEvent) Type() string { return TypeChannelGetName }
func (*ChannelSetNameEvent) Type() string { return TypeChannelSetName }
func (*MessageListEvent) Type() string { return TypeMessageList }
func (*MessageCreateEvent) Type() string { return TypeMessageCreate }
func (*MessageDeleteEvent) Type() string { return TypeMessageDelete }
func (*MessageGetContentEvent) Type() string { return TypeMessageGetContent }
func (*MessageSetContentEvent) Type() string { return TypeMessageSetContent }
func (*UserListEvent) Type() string { return TypeUserList }
func (*UserCreateEvent) Type() string { return TypeUserCreate }
func (*UserDeleteEvent) Type() string { return TypeUserDelete }
func (*UserGetNameEvent) Type() string { return TypeUserGetName }
func (*UserSetNameEvent) Type() string { return TypeUserSetName }

var eventRegistry = map[string]func() Event{
	TypePong:              func() Event { return &PongEvent{} },
	TypeAuthenticate:      func() Event { return &AuthenticateEvent{} },
	TypeUnauthorized:      func() Event { return &UnauthorizedEvent{} },
	TypeChannelList:       func() Event { return &ChannelListEvent{} },
	TypeChannelCreate:     func() Event { return &ChannelCreateEvent{} },
	TypeChannelDelete:     func() Event { return &ChannelDeleteEvent{} },
	TypeChannelGetName:    func() Event { return &ChannelGetNameEvent{} },
	TypeChannelSetName:    func() Event { return &ChannelSetNameEvent{} },
	TypeMessageList:       func() Event { return &MessageListEvent{} },
	TypeMessageCreate:     func() Event { return &MessageCreateEvent{} },
	TypeMessageDelete:     func() Event { return &MessageDeleteEvent{} },
	TypeMessageGetContent: func() Event { return &MessageGetContentEvent{} },
	TypeMessageSetContent: func() Event { return &MessageSetContentEvent{} },
	TypeUserList:          func() Event { return &UserListEvent{} },
	TypeUserCreate:        func() Event { return &UserCreateEvent{} },
	TypeUserDelete:        func() Event { return &UserDeleteEvent{} },
	TypeUserGetName:       func() Event { return &UserGetNameEvent{} },
	TypeUserSetName:       func() Event { return &UserSetNameEvent{} },
}
