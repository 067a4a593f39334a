package storage

import (
	"strings"

	"github.com/MajorBarnulf/harsh/model"
)

// Key layout. Every id is written in its zero-padded form so that a
// prefix scan returns children in numeric, and therefore creation, order.
const (
	channelsPrefix   = "/channels/"
	messagesRoot     = "/messages/"
	usersPrefix      = "/users/"
	serverOpsPrefix  = "/op/serv/"
	channelOpsRoot   = "/op/channels/"
	permissionMarker = "true"
)

func channelKey(id model.Id) string {
	return channelsPrefix + id.String()
}

func messagesPrefix(channel model.Id) string {
	return messagesRoot + channel.String() + "/"
}

func messageKey(channel, id model.Id) string {
	return messagesPrefix(channel) + id.String()
}

func userKey(id model.Id) string {
	return usersPrefix + id.String()
}

func serverOpKey(user model.Id) string {
	return serverOpsPrefix + user.String()
}

func channelOpsPrefix(channel model.Id) string {
	return channelOpsRoot + channel.String() + "/"
}

func channelOpKey(channel, user model.Id) string {
	return channelOpsPrefix(channel) + user.String()
}

// idsUnder returns the ids of the direct children of prefix, in key order.
// Deeper keys and suffixes that are not ids are skipped.
func idsUnder(prefix string, keys []string) []model.Id {
	ids := make([]model.Id, 0, len(keys))
	for _, key := range keys {
		suffix, ok := strings.CutPrefix(key, prefix)
		if !ok || strings.Contains(suffix, "/") {
			continue
		}
		id, err := model.ParseId(suffix)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// lastSegmentID parses the id at the end of a key.
func lastSegmentID(key string) (model.Id, bool) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return 0, false
	}
	id, err := model.ParseId(key[i+1:])
	if err != nil {
		return 0, false
	}
	return id, true
}
