package protocol

import "github.com/MajorBarnulf/harsh/model"

// Command tags.
const (
	TypePing              = "ping"
	TypeAuthenticate      = "authenticate"
	TypeChannelList       = "channel_list"
	TypeChannelCreate     = "channel_create"
	TypeChannelDelete     = "channel_delete"
	TypeChannelGetName    = "channel_get_name"
	TypeChannelSetName    = "channel_set_name"
	TypeMessageList       = "message_list"
	TypeMessageCreate     = "message_create"
	TypeMessageDelete     = "message_delete"
	TypeMessageGetContent = "message_get_content"
	TypeMessageSetContent = "message_set_content"
	TypeUserList          = "user_list"
	TypeUserCreate        = "user_create"
	TypeUserDelete        = "user_delete"
	TypeUserGetName       = "user_get_name"
	TypeUserSetName       = "user_set_name"
	TypeUserSetPass       = "user_set_pass"
)

// Ping asks the server to echo content back.
type Ping struct {
	Content string `json:"content"`
}

// Authenticate logs the connection in as user ID.
type Authenticate struct {
	ID   model.Id `json:"id"`
	Pass string   `json:"pass"`
}

type ChannelList struct{}

type ChannelCreate struct {
	Name string `json:"name"`
}

type ChannelDelete struct {
	ID model.Id `json:"id"`
}

type ChannelGetName struct {
	ID model.Id `json:"id"`
}

type ChannelSetName struct {
	ID   model.Id `json:"id"`
	Name string   `json:"name"`
}

type MessageList struct {
	ChannelID model.Id `json:"channel_id"`
}

type MessageCreate struct {
	ChannelID model.Id `json:"channel_id"`
	Content   string   `json:"content"`
}

type MessageDelete struct {
	ChannelID model.Id `json:"channel_id"`
	ID        model.Id `json:"id"`
}

type MessageGetContent struct {
	ChannelID model.Id `json:"channel_id"`
	ID        model.Id `json:"id"`
}

type MessageSetContent struct {
	ChannelID model.Id `json:"channel_id"`
	ID        model.Id `json:"id"`
	Content   string   `json:"content"`
}

type UserList struct{}

type UserCreate struct {
	Name string `json:"name"`
	Pass string `json:"pass"`
}

type UserDelete struct {
	ID model.Id `json:"id"`
}

type UserGetName struct {
	ID model.Id `json:"id"`
}

type UserSetName struct {
	ID   model.Id `json:"id"`
	Name string   `json:"name"`
}

type UserSetPass struct {
	ID   model.Id `json:"id"`
	Pass string   `json:"pass"`
}

func (*Ping) Type() string { return TypePing }
func (*Authenticate) Type() string { return TypeAuthenticate }
func (*ChannelList) Type() string { return TypeChannelList }
func (*ChannelCreate) Type() string { return TypeChannelCreate }
func (*ChannelDelete) Type() string { return TypeChannelDelete }
func (*ChannelGetName) Type() string { return TypeChannelGetName }
func (*ChannelSetName) Type() string { return TypeChannelSetName }
func (*MessageList) Type() string { return TypeMessageList }
func (*MessageCreate) Type() string { return TypeMessageCreate }
func (*MessageDelete) Type() string { return TypeMessageDelete }
func (*MessageGetContent) Type() string { return TypeMessageGetContent }
func (*MessageSetContent) Type() string { return TypeMessageSetContent }
func (*UserList) Type() string { return TypeUserList }
func (*UserCreate) Type() string { return TypeUserCreate }
func (*UserDelete) Type() string { return TypeUserDelete }
func (*UserGetName) Type() string { return TypeUserGetName }
func (*UserSetName) Type() string { return TypeUserSetName }
func (*UserSetPass) Type() string { return TypeUserSetPass }

var commandRegistry = map[string]func() Command{
	TypePing:              func() Command { return &Ping{} },
	TypeAuthenticate:      func() Command { return &Authenticate{} },
	TypeChannelList:       func() Command { return &ChannelList{} },
	TypeChannelCreate:     func() Command { return &ChannelCreate{} },
	TypeChannelDelete:     func() Command { return &ChannelDelete{} },
	TypeChannelGetName:    func() Command { return &ChannelGetName{} },
	TypeChannelSetName:    func() Command { return &ChannelSetName{} },
	TypeMessageList:       func() Command { return &MessageList{} },
	TypeMessageCreate:     func() Command { return &MessageCreate{} },
	TypeMessageDelete:     func() Command { return &MessageDelete{} },
	TypeMessageGetContent: func() Command { return &MessageGetContent{} },
	TypeMessageSetContent: func() Command { return &MessageSetContent{} },
	TypeUserList:          func() Command { return &UserList{} },
	TypeUserCreate:        func() Command { return &UserCreate{} },
	TypeUserDelete:        func() Command { return &UserDelete{} },
	TypeUserGetName:       func() Command { return &UserGetName{} },
	TypeUserSetName:       func() Command { return &UserSetName{} },
	TypeUserSetPass:       func() Command { return &UserSetPass{} },
}
