// Package model holds the identifiers and records shared by the harsh
// actors.
package model

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// IdWidth is the length of the canonical text form of an Id. It is the
// number of decimal digits of the largest uint64, so that byte order of
// the text equals numeric order.
const IdWidth = 20

// Id identifies a channel, message or user. On the wire it is a plain
// unsigned integer; String returns the zero-padded storage form.
type Id uint64

// NewId derives an Id from the current time in milliseconds with a random
// low-order component. Two ids made within the same millisecond may
// collide; use a Generator where uniqueness matters.
func NewId() Id {
	return idAt(time.Now(), rand.Uint64())
}

func idAt(t time.Time, random uint64) Id {
	ms := uint64(t.UnixMilli())
	return Id(ms*1000 + random%1000)
}

// ParseId parses either the padded or the plain decimal form.
func ParseId(s string) (Id, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return Id(v), nil
}

// String returns the id zero-padded to IdWidth digits.
func (id Id) String() string {
	return fmt.Sprintf("%0*d", IdWidth, uint64(id))
}

// Uint64 returns the raw value.
func (id Id) Uint64() uint64 {
	return uint64(id)
}

// Generator hands out strictly increasing ids. It is not safe for
// concurrent use; the storage actor owns one.
type Generator struct {
	last Id
	now  func() time.Time
	rand func() uint64
}

// NewGenerator creates a Generator seeded with the last id already in use,
// or zero.
func NewGenerator(last Id) *Generator {
	return &Generator{last: last, now: time.Now, rand: rand.Uint64}
}

// Next returns a fresh id greater than every id returned before.
func (g *Generator) Next() Id {
	id := idAt(g.now(), g.rand())
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe raises the generator floor to id if it is higher.
func (g *Generator) Observe(id Id) {
	if id > g.last {
		g.last = id
	}
}
