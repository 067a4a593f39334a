// Package security implements the security actor: password checks and
// authorization decisions over the permission sets kept by storage.
package security

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/storage"
)

// DefaultSalt is appended to every password before hashing.
const DefaultSalt = ":)"

// Hash returns the hex encoded blake2b-256 digest of pass followed by
// salt. It is a fixed salted digest, not a work-factor KDF.
func Hash(pass, salt string) string {
	sum := blake2b.Sum256([]byte(pass + salt))
	return hex.EncodeToString(sum[:])
}

// Command is a request to the security actor.
type Command interface {
	securityCommand()
}

// Authorize asks whether User holds Perm.
type Authorize struct {
	User model.Id
	Perm model.Perm
	*core.Reply[bool]
}

// Authenticate checks a plaintext password against the stored hash.
type Authenticate struct {
	User model.Id
	Pass string
	*core.Reply[bool]
}

// StorePassword hashes Pass and stores it for User. It resolves to false
// when the user does not exist.
type StorePassword struct {
	User model.Id
	Pass string
	*core.Reply[bool]
}

func (*Authorize) securityCommand()     {}
func (*Authenticate) securityCommand()  {}
func (*StorePassword) securityCommand() {}

// Security is the handler of the security actor. It keeps no state of its
// own besides the salt.
type Security struct {
	storage *storage.Client
	salt    string
	log     *logrus.Entry
}

// New creates the security handler.
func New(store *storage.Client, salt string, logger *logrus.Logger) *Security {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Security{
		storage: store,
		salt:    salt,
		log:     logger.WithField("component", "security"),
	}
}

func (s *Security) Handle(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case *Authorize:
		ok, err := s.authorize(ctx, c.User, c.Perm)
		if err != nil {
			return err
		}
		if !ok {
			s.log.WithFields(logrus.Fields{"user": c.User, "perm": c.Perm}).Debug("permission denied")
		}
		c.Resolve(ok)

	case *Authenticate:
		stored, found, err := s.storage.UserGetPass(ctx, c.User)
		if err != nil {
			return err
		}
		ok := found && subtle.ConstantTimeCompare([]byte(stored), []byte(Hash(c.Pass, s.salt))) == 1
		s.log.WithFields(logrus.Fields{"user": c.User, "success": ok}).Debug("authentication")
		c.Resolve(ok)

	case *StorePassword:
		found, err := s.storage.UserSetPass(ctx, c.User, Hash(c.Pass, s.salt))
		if err != nil {
			return err
		}
		c.Resolve(found)

	default:
		return fmt.Errorf("unknown security command %T", cmd)
	}
	return nil
}

// authorize grants every permission to server operators and a channel
// permission to that channel's operators.
func (s *Security) authorize(ctx context.Context, user model.Id, perm model.Perm) (bool, error) {
	serverOps, err := s.storage.ServerOpList(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(serverOps, user) {
		return true, nil
	}

	if perm.Kind != model.PermKindChannelOp {
		return false, nil
	}
	channelOps, err := s.storage.ChannelOpList(ctx, perm.Channel)
	if err != nil {
		return false, err
	}
	return slices.Contains(channelOps, user), nil
}
