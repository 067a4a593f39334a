package gateway

import (
	"context"
	"fmt"

	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/protocol"
)

// request is one authenticated command in flight.
type request struct {
	*Gateway
	ctx  context.Context
	addr model.Addr
	user model.Id
}

func (r *request) dispatch(cmd protocol.Command) error {
	switch c := cmd.(type) {
	// channels
	case *protocol.ChannelList:
		ids, err := r.storage.ChannelList(r.ctx)
		if err != nil {
			return err
		}
		return r.reply(&protocol.ChannelListEvent{Channels: ids})

	case *protocol.ChannelCreate:
		id, err := r.storage.ChannelCreate(r.ctx, c.Name)
		if err != nil {
			return err
		}
		if _, err := r.storage.ChannelOpAdd(r.ctx, id, r.user); err != nil {
			return err
		}
		return r.broadcast(&protocol.ChannelCreateEvent{ID: id, Name: c.Name})

	case *protocol.ChannelDelete:
		if ok, err := r.allowed(model.PermChannelOp(c.ID)); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		existed, err := r.storage.ChannelDelete(r.ctx, c.ID)
		if err != nil || !existed {
			return err
		}
		return r.broadcast(&protocol.ChannelDeleteEvent{ID: c.ID})

	case *protocol.ChannelGetName:
		name, found, err := r.storage.ChannelGetName(r.ctx, c.ID)
		if err != nil {
			return err
		}
		return r.reply(&protocol.ChannelGetNameEvent{ID: c.ID, Name: optional(name, found)})

	case *protocol.ChannelSetName:
		if ok, err := r.allowed(model.PermChannelOp(c.ID)); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		found, err := r.storage.ChannelSetName(r.ctx, c.ID, c.Name)
		if err != nil || !found {
			return err
		}
		return r.broadcast(&protocol.ChannelSetNameEvent{ID: c.ID, Name: c.Name})

	// messages
	case *protocol.MessageList:
		ids, err := r.storage.MessageList(r.ctx, c.ChannelID)
		if err != nil {
			return err
		}
		return r.reply(&protocol.MessageListEvent{ChannelID: c.ChannelID, Messages: ids})

	case *protocol.MessageCreate:
		id, created, err := r.storage.MessageCreate(r.ctx, c.ChannelID, c.Content)
		if err != nil || !created {
			return err
		}
		return r.broadcast(&protocol.MessageCreateEvent{ChannelID: c.ChannelID, ID: id, Content: c.Content})

	case *protocol.MessageDelete:
		if ok, err := r.allowed(model.PermChannelOp(c.ChannelID)); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		existed, err := r.storage.MessageDelete(r.ctx, c.ChannelID, c.ID)
		if err != nil || !existed {
			return err
		}
		return r.broadcast(&protocol.MessageDeleteEvent{ChannelID: c.ChannelID, ID: c.ID})

	case *protocol.MessageGetContent:
		content, found, err := r.storage.MessageGetContent(r.ctx, c.ChannelID, c.ID)
		if err != nil {
			return err
		}
		return r.reply(&protocol.MessageGetContentEvent{ChannelID: c.ChannelID, ID: c.ID, Content: optional(content, found)})

	case *protocol.MessageSetContent:
		if ok, err := r.allowed(model.PermChannelOp(c.ChannelID)); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		found, err := r.storage.MessageSetContent(r.ctx, c.ChannelID, c.ID, c.Content)
		if err != nil || !found {
			return err
		}
		return r.broadcast(&protocol.MessageSetContentEvent{ChannelID: c.ChannelID, ID: c.ID, Content: c.Content})

	// users
	case *protocol.UserList:
		ids, err := r.storage.UserList(r.ctx)
		if err != nil {
			return err
		}
		return r.reply(&protocol.UserListEvent{Users: ids})

	case *protocol.UserCreate:
		if ok, err := r.allowed(model.PermServerOp()); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		id, err := r.storage.UserCreate(r.ctx, c.Name, "")
		if err != nil {
			return err
		}
		if _, err := r.security.StorePassword(r.ctx, id, c.Pass); err != nil {
			return err
		}
		return r.broadcast(&protocol.UserCreateEvent{ID: id, Name: c.Name})

	case *protocol.UserDelete:
		if ok, err := r.allowed(model.PermServerOp()); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		existed, err := r.storage.UserDelete(r.ctx, c.ID)
		if err != nil || !existed {
			return err
		}
		return r.broadcast(&protocol.UserDeleteEvent{ID: c.ID})

	case *protocol.UserGetName:
		name, found, err := r.storage.UserGetName(r.ctx, c.ID)
		if err != nil {
			return err
		}
		return r.reply(&protocol.UserGetNameEvent{ID: c.ID, Name: optional(name, found)})

	case *protocol.UserSetName:
		if ok, err := r.selfOrServerOp(c.ID); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		found, err := r.storage.UserSetName(r.ctx, c.ID, c.Name)
		if err != nil || !found {
			return err
		}
		return r.broadcast(&protocol.UserSetNameEvent{ID: c.ID, Name: c.Name})

	case *protocol.UserSetPass:
		if ok, err := r.selfOrServerOp(c.ID); !ok || err != nil {
			return r.refuse(cmd, err)
		}
		_, err := r.security.StorePassword(r.ctx, c.ID, c.Pass)
		return err

	default:
		return fmt.Errorf("unhandled command %q", cmd.Type())
	}
}

func (r *request) reply(ev protocol.Event) error {
	return r.send(r.addr, ev)
}

func (r *request) allowed(perm model.Perm) (bool, error) {
	return r.security.Authorize(r.ctx, r.user, perm)
}

func (r *request) selfOrServerOp(target model.Id) (bool, error) {
	if target == r.user {
		return true, nil
	}
	return r.allowed(model.PermServerOp())
}

// refuse reports a denied permission to the requester. A failed check is
// returned as is.
func (r *request) refuse(cmd protocol.Command, err error) error {
	if err != nil {
		return err
	}
	return r.unauthorized(r.addr, cmd)
}

func optional(value string, found bool) *string {
	if !found {
		return nil
	}
	return &value
}
