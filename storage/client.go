package storage

import (
	"context"

	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
)

// Client wraps the storage actor's Remote with typed request methods.
type Client struct {
	remote core.Remote[Command]
}

// NewClient creates a client for a running storage actor.
func NewClient(remote core.Remote[Command]) *Client {
	return &Client{remote: remote}
}

// Remote returns the underlying actor handle.
func (c *Client) Remote() core.Remote[Command] {
	return c.remote
}

func request[T any](ctx context.Context, c *Client, cmd Command, reply *core.Reply[T]) (T, error) {
	if err := c.remote.Send(cmd); err != nil {
		var zero T
		return zero, err
	}
	return reply.Wait(ctx)
}

// optional turns a nil-able reply into the (value, ok) form.
func optional[T any](value *T, err error) (T, bool, error) {
	var zero T
	if err != nil || value == nil {
		return zero, false, err
	}
	return *value, true, nil
}

func (c *Client) ChannelCreate(ctx context.Context, name string) (model.Id, error) {
	cmd := &ChannelCreate{Name: name, Reply: core.NewReply[model.Id]()}
	return request(ctx, c, cmd, cmd.Reply)
}

// ChannelDelete deletes the channel with its messages and reports whether
// it existed.
func (c *Client) ChannelDelete(ctx context.Context, id model.Id) (bool, error) {
	cmd := &ChannelDelete{ID: id, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ChannelList(ctx context.Context) ([]model.Id, error) {
	cmd := &ChannelList{Reply: core.NewReply[[]model.Id]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ChannelGetName(ctx context.Context, id model.Id) (string, bool, error) {
	cmd := &ChannelGetName{ID: id, Reply: core.NewReply[*string]()}
	value, err := request(ctx, c, cmd, cmd.Reply)
	return optional(value, err)
}

func (c *Client) ChannelSetName(ctx context.Context, id model.Id, name string) (bool, error) {
	cmd := &ChannelSetName{ID: id, Name: name, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

// MessageCreate reports false when the channel does not exist.
func (c *Client) MessageCreate(ctx context.Context, channel model.Id, content string) (model.Id, bool, error) {
	cmd := &MessageCreate{ChannelID: channel, Content: content, Reply: core.NewReply[*model.Id]()}
	value, err := request(ctx, c, cmd, cmd.Reply)
	return optional(value, err)
}

func (c *Client) MessageDelete(ctx context.Context, channel, id model.Id) (bool, error) {
	cmd := &MessageDelete{ChannelID: channel, ID: id, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) MessageList(ctx context.Context, channel model.Id) ([]model.Id, error) {
	cmd := &MessageList{ChannelID: channel, Reply: core.NewReply[[]model.Id]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) MessageGetContent(ctx context.Context, channel, id model.Id) (string, bool, error) {
	cmd := &MessageGetContent{ChannelID: channel, ID: id, Reply: core.NewReply[*string]()}
	value, err := request(ctx, c, cmd, cmd.Reply)
	return optional(value, err)
}

func (c *Client) MessageSetContent(ctx context.Context, channel, id model.Id, content string) (bool, error) {
	cmd := &MessageSetContent{ChannelID: channel, ID: id, Content: content, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

// UserCreate stores a new user. pass must already be hashed.
func (c *Client) UserCreate(ctx context.Context, name, pass string) (model.Id, error) {
	cmd := &UserCreate{Name: name, Pass: pass, Reply: core.NewReply[model.Id]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) UserDelete(ctx context.Context, id model.Id) (bool, error) {
	cmd := &UserDelete{ID: id, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) UserList(ctx context.Context) ([]model.Id, error) {
	cmd := &UserList{Reply: core.NewReply[[]model.Id]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) UserGetName(ctx context.Context, id model.Id) (string, bool, error) {
	cmd := &UserGetName{ID: id, Reply: core.NewReply[*string]()}
	value, err := request(ctx, c, cmd, cmd.Reply)
	return optional(value, err)
}

func (c *Client) UserSetName(ctx context.Context, id model.Id, name string) (bool, error) {
	cmd := &UserSetName{ID: id, Name: name, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) UserGetPass(ctx context.Context, id model.Id) (string, bool, error) {
	cmd := &UserGetPass{ID: id, Reply: core.NewReply[*string]()}
	value, err := request(ctx, c, cmd, cmd.Reply)
	return optional(value, err)
}

func (c *Client) UserSetPass(ctx context.Context, id model.Id, pass string) (bool, error) {
	cmd := &UserSetPass{ID: id, Pass: pass, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ServerOpAdd(ctx context.Context, user model.Id) (bool, error) {
	cmd := &ServerOpAdd{User: user, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ServerOpRemove(ctx context.Context, user model.Id) (bool, error) {
	cmd := &ServerOpRemove{User: user, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ServerOpList(ctx context.Context) ([]model.Id, error) {
	cmd := &ServerOpList{Reply: core.NewReply[[]model.Id]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ChannelOpAdd(ctx context.Context, channel, user model.Id) (bool, error) {
	cmd := &ChannelOpAdd{ChannelID: channel, User: user, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ChannelOpRemove(ctx context.Context, channel, user model.Id) (bool, error) {
	cmd := &ChannelOpRemove{ChannelID: channel, User: user, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) ChannelOpList(ctx context.Context, channel model.Id) ([]model.Id, error) {
	cmd := &ChannelOpList{ChannelID: channel, Reply: core.NewReply[[]model.Id]()}
	return request(ctx, c, cmd, cmd.Reply)
}
