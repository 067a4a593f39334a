package storage

import (
	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
)

// Command is a request to the storage actor. Request commands embed a
// reply; a nil reply makes the command fire-and-forget.
type Command interface {
	storageCommand()
}

// Channels.

type ChannelCreate struct {
	Name string
	*core.Reply[model.Id]
}

type ChannelDelete struct {
	ID model.Id
	*core.Reply[bool]
}

type ChannelList struct {
	*core.Reply[[]model.Id]
}

type ChannelGetName struct {
	ID model.Id
	*core.Reply[*string]
}

type ChannelSetName struct {
	ID   model.Id
	Name string
	*core.Reply[bool]
}

// Messages.

// MessageCreate resolves to nil when the channel does not exist.
type MessageCreate struct {
	ChannelID model.Id
	Content   string
	*core.Reply[*model.Id]
}

type MessageDelete struct {
	ChannelID model.Id
	ID        model.Id
	*core.Reply[bool]
}

type MessageList struct {
	ChannelID model.Id
	*core.Reply[[]model.Id]
}

type MessageGetContent struct {
	ChannelID model.Id
	ID        model.Id
	*core.Reply[*string]
}

type MessageSetContent struct {
	ChannelID model.Id
	ID        model.Id
	Content   string
	*core.Reply[bool]
}

// Users. Pass always holds a password hash, never the plaintext.

type UserCreate struct {
	Name string
	Pass string
	*core.Reply[model.Id]
}

type UserDelete struct {
	ID model.Id
	*core.Reply[bool]
}

type UserList struct {
	*core.Reply[[]model.Id]
}

type UserGetName struct {
	ID model.Id
	*core.Reply[*string]
}

type UserSetName struct {
	ID   model.Id
	Name string
	*core.Reply[bool]
}

type UserGetPass struct {
	ID model.Id
	*core.Reply[*string]
}

type UserSetPass struct {
	ID   model.Id
	Pass string
	*core.Reply[bool]
}

// Permission sets. Add resolves to false when the user (or channel) does
// not exist, Remove to false when the entry was not present.

type ServerOpAdd struct {
	User model.Id
	*core.Reply[bool]
}

type ServerOpRemove struct {
	User model.Id
	*core.Reply[bool]
}

type ServerOpList struct {
	*core.Reply[[]model.Id]
}

type ChannelOpAdd struct {
	ChannelID model.Id
	User      model.Id
	*core.Reply[bool]
}

type ChannelOpRemove struct {
	ChannelID model.Id
	User      model.Id
	*core.Reply[bool]
}

type ChannelOpList struct {
	ChannelID model.Id
	*core.Reply[[]model.Id]
}

func (*ChannelCreate) storageCommand() {}
func (*ChannelDelete) storageCommand() {}
func (*ChannelList) storageCommand() {}
func (*ChannelGetName) storageCommand() {}
func (*ChannelSetName) storageCommand() {}
func (*MessageCreate) storageCommand() {}
func (*MessageDelete) storageCommand() {}
func (*MessageList) storageCommand() {}
func (*MessageGetContent) storageCommand() {}
func (*MessageSetContent) storageCommand() {}
func (*UserCreate) storageCommand() {}
func (*UserDelete) storageCommand() {}
func (*UserList) storageCommand() {}
func (*UserGetName) storageCommand() {}
func (*UserSetName) storageCommand() {}
func (*UserGetPass) storageCommand() {}
func (*UserSetPass) storageCommand() {}
func (*ServerOpAdd) storageCommand() {}
func (*ServerOpRemove) storageCommand() {}
func (*ServerOpList) storageCommand() {}
func (*ChannelOpAdd) storageCommand() {}
func (*ChannelOpRemove) storageCommand() {}
func (*ChannelOpList) storageCommand() {}
