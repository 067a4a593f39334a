package model

import (
	"fmt"
	"net"
)

// Addr identifies a live connection. It is derived from the peer address
// and never persisted.
type Addr string

// AddrOf returns the Addr of a peer.
func AddrOf(addr net.Addr) Addr {
	if addr == nil {
		return ""
	}
	return Addr(addr.Network() + "://" + addr.String())
}

func (a Addr) String() string {
	return string(a)
}

// Channel is a named container of messages.
type Channel struct {
	Id   Id     `json:"id"`
	Name string `json:"name"`
}

// Message belongs to exactly one channel.
type Message struct {
	Id      Id     `json:"id"`
	Content string `json:"content"`
}

// User holds the account name and the password digest.
type User struct {
	Id   Id     `json:"id"`
	Name string `json:"name"`
	Pass string `json:"pass"`
}

// PermKind distinguishes server-wide and channel-scoped permissions.
type PermKind uint8

const (
	PermKindServerOp PermKind = iota
	PermKindChannelOp
)

// Perm is a permission a user may hold.
type Perm struct {
	Kind    PermKind
	Channel Id
}

// PermServerOp is the permission of server operators.
func PermServerOp() Perm {
	return Perm{Kind: PermKindServerOp}
}

// PermChannelOp is the permission to administer one channel.
func PermChannelOp(channel Id) Perm {
	return Perm{Kind: PermKindChannelOp, Channel: channel}
}

func (p Perm) String() string {
	switch p.Kind {
	case PermKindServerOp:
		return "server-op"
	case PermKindChannelOp:
		return fmt.Sprintf("channel-op(%d)", uint64(p.Channel))
	default:
		return "unknown"
	}
}
