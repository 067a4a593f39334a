// Package storage implements the storage actor, the only owner of durable
// harsh state. Channels, messages, users and permission sets live in one
// ordered key-value namespace addressed by hierarchical paths.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MajorBarnulf/harsh/model"
)

// Storage is the handler of the storage actor. Its methods must only be
// called from the actor loop.
type Storage struct {
	backend Backend
	ids     *model.Generator
	log     *logrus.Entry
}

// New wraps backend. The id generator is seeded with the highest id found
// in the store so that ids are never reused across restarts.
func New(backend Backend, logger *logrus.Logger) (*Storage, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Storage{
		backend: backend,
		ids:     model.NewGenerator(0),
		log:     logger.WithField("component", "storage"),
	}

	for _, prefix := range []string{channelsPrefix, messagesRoot, usersPrefix} {
		keys, err := backend.Scan(prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to seed id generator: %w", err)
		}
		for _, key := range keys {
			if id, ok := lastSegmentID(key); ok {
				s.ids.Observe(id)
			}
		}
	}

	return s, nil
}

// Handle processes one storage command.
func (s *Storage) Handle(ctx context.Context, cmd Command) error {
	err := s.handle(cmd)
	if err != nil {
		s.log.WithError(err).WithField("command", fmt.Sprintf("%T", cmd)).Error("storage operation failed")
	}
	return err
}

// OnStop closes the backend once the last command has been processed.
func (s *Storage) OnStop() {
	if err := s.backend.Close(); err != nil {
		s.log.WithError(err).Warn("failed to close store")
		return
	}
	s.log.Debug("store closed")
}

func (s *Storage) handle(cmd Command) error {
	switch c := cmd.(type) {
	// channels
	case *ChannelCreate:
		id := s.ids.Next()
		if err := s.put(channelKey(id), model.Channel{Id: id, Name: c.Name}); err != nil {
			return err
		}
		c.Resolve(id)

	case *ChannelDelete:
		existed, err := s.deleteChannel(c.ID)
		if err != nil {
			return err
		}
		c.Resolve(existed)

	case *ChannelList:
		ids, err := s.list(channelsPrefix)
		if err != nil {
			return err
		}
		c.Resolve(ids)

	case *ChannelGetName:
		channel, err := get[model.Channel](s.backend, channelKey(c.ID))
		if err != nil {
			return err
		}
		if channel == nil {
			c.Resolve(nil)
			return nil
		}
		c.Resolve(&channel.Name)

	case *ChannelSetName:
		found, err := update(s, channelKey(c.ID), func(channel *model.Channel) { channel.Name = c.Name })
		if err != nil {
			return err
		}
		c.Resolve(found)

	// messages
	case *MessageCreate:
		exists, err := s.exists(channelKey(c.ChannelID))
		if err != nil {
			return err
		}
		if !exists {
			c.Resolve(nil)
			return nil
		}
		id := s.ids.Next()
		if err := s.put(messageKey(c.ChannelID, id), model.Message{Id: id, Content: c.Content}); err != nil {
			return err
		}
		c.Resolve(&id)

	case *MessageDelete:
		key := messageKey(c.ChannelID, c.ID)
		existed, err := s.exists(key)
		if err != nil {
			return err
		}
		if existed {
			if err := s.backend.Delete(key); err != nil {
				return err
			}
		}
		c.Resolve(existed)

	case *MessageList:
		ids, err := s.list(messagesPrefix(c.ChannelID))
		if err != nil {
			return err
		}
		c.Resolve(ids)

	case *MessageGetContent:
		message, err := get[model.Message](s.backend, messageKey(c.ChannelID, c.ID))
		if err != nil {
			return err
		}
		if message == nil {
			c.Resolve(nil)
			return nil
		}
		c.Resolve(&message.Content)

	case *MessageSetContent:
		found, err := update(s, messageKey(c.ChannelID, c.ID), func(message *model.Message) { message.Content = c.Content })
		if err != nil {
			return err
		}
		c.Resolve(found)

	// users
	case *UserCreate:
		id := s.ids.Next()
		if err := s.put(userKey(id), model.User{Id: id, Name: c.Name, Pass: c.Pass}); err != nil {
			return err
		}
		c.Resolve(id)

	case *UserDelete:
		existed, err := s.deleteUser(c.ID)
		if err != nil {
			return err
		}
		c.Resolve(existed)

	case *UserList:
		ids, err := s.list(usersPrefix)
		if err != nil {
			return err
		}
		c.Resolve(ids)

	case *UserGetName:
		user, err := get[model.User](s.backend, userKey(c.ID))
		if err != nil {
			return err
		}
		if user == nil {
			c.Resolve(nil)
			return nil
		}
		c.Resolve(&user.Name)

	case *UserSetName:
		found, err := update(s, userKey(c.ID), func(user *model.User) { user.Name = c.Name })
		if err != nil {
			return err
		}
		c.Resolve(found)

	case *UserGetPass:
		user, err := get[model.User](s.backend, userKey(c.ID))
		if err != nil {
			return err
		}
		if user == nil {
			c.Resolve(nil)
			return nil
		}
		c.Resolve(&user.Pass)

	case *UserSetPass:
		found, err := update(s, userKey(c.ID), func(user *model.User) { user.Pass = c.Pass })
		if err != nil {
			return err
		}
		c.Resolve(found)

	// permissions
	case *ServerOpAdd:
		exists, err := s.exists(userKey(c.User))
		if err != nil {
			return err
		}
		if exists {
			if err := s.backend.Set(serverOpKey(c.User), []byte(permissionMarker)); err != nil {
				return err
			}
		}
		c.Resolve(exists)

	case *ServerOpRemove:
		removed, err := s.remove(serverOpKey(c.User))
		if err != nil {
			return err
		}
		c.Resolve(removed)

	case *ServerOpList:
		ids, err := s.list(serverOpsPrefix)
		if err != nil {
			return err
		}
		c.Resolve(ids)

	case *ChannelOpAdd:
		channelExists, err := s.exists(channelKey(c.ChannelID))
		if err != nil {
			return err
		}
		userExists, err := s.exists(userKey(c.User))
		if err != nil {
			return err
		}
		ok := channelExists && userExists
		if ok {
			if err := s.backend.Set(channelOpKey(c.ChannelID, c.User), []byte(permissionMarker)); err != nil {
				return err
			}
		}
		c.Resolve(ok)

	case *ChannelOpRemove:
		removed, err := s.remove(channelOpKey(c.ChannelID, c.User))
		if err != nil {
			return err
		}
		c.Resolve(removed)

	case *ChannelOpList:
		ids, err := s.list(channelOpsPrefix(c.ChannelID))
		if err != nil {
			return err
		}
		c.Resolve(ids)

	default:
		return fmt.Errorf("unknown storage command %T", cmd)
	}

	return nil
}

// deleteChannel removes the messages of the channel, then its operator
// set, then the channel record.
func (s *Storage) deleteChannel(id model.Id) (bool, error) {
	existed, err := s.exists(channelKey(id))
	if err != nil {
		return false, err
	}

	messages, err := s.backend.Scan(messagesPrefix(id))
	if err != nil {
		return false, err
	}
	if len(messages) > 0 {
		if err := s.backend.Delete(messages...); err != nil {
			return false, err
		}
	}

	ops, err := s.backend.Scan(channelOpsPrefix(id))
	if err != nil {
		return false, err
	}
	if len(ops) > 0 {
		if err := s.backend.Delete(ops...); err != nil {
			return false, err
		}
	}

	if existed {
		if err := s.backend.Delete(channelKey(id)); err != nil {
			return false, err
		}
		s.log.WithFields(logrus.Fields{
			"channel":  id,
			"messages": len(messages),
		}).Debug("channel deleted")
	}
	return existed, nil
}

// deleteUser removes the user's operator entries, then the user record.
func (s *Storage) deleteUser(id model.Id) (bool, error) {
	existed, err := s.exists(userKey(id))
	if err != nil {
		return false, err
	}

	keys := []string{serverOpKey(id)}
	ops, err := s.backend.Scan(channelOpsRoot)
	if err != nil {
		return false, err
	}
	for _, key := range ops {
		if user, ok := lastSegmentID(key); ok && user == id {
			keys = append(keys, key)
		}
	}
	if existed {
		keys = append(keys, userKey(id))
	}

	if err := s.backend.Delete(keys...); err != nil {
		return false, err
	}
	return existed, nil
}

func (s *Storage) list(prefix string) ([]model.Id, error) {
	keys, err := s.backend.Scan(prefix)
	if err != nil {
		return nil, err
	}
	return idsUnder(prefix, keys), nil
}

func (s *Storage) exists(key string) (bool, error) {
	_, ok, err := s.backend.Get(key)
	return ok, err
}

func (s *Storage) remove(key string) (bool, error) {
	existed, err := s.exists(key)
	if err != nil || !existed {
		return false, err
	}
	return true, s.backend.Delete(key)
}

func (s *Storage) put(key string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.backend.Set(key, data)
}

// get reads and decodes the record at key, or returns nil if absent.
func get[T any](backend Backend, key string) (*T, error) {
	data, ok, err := backend.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	record := new(T)
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return record, nil
}

// update is a read-modify-write of the record at key. It reports whether
// the record existed; a missing record is left absent.
func update[T any](s *Storage, key string, mutate func(*T)) (bool, error) {
	record, err := get[T](s.backend, key)
	if err != nil || record == nil {
		return false, err
	}
	mutate(record)
	return true, s.put(key, record)
}
