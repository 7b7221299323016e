package presence

import (
	"context"
	"strconv"

	"owlet/internal/core/domain"
)

const shardCount = 10

// ShardName maps a user id to the shard holding its presence entry.
// The last rune decides; ids that do not end in a digit all land on
// shard-0, a known imbalance kept for id-scheme compatibility.
func ShardName(userID domain.UserID) string {
	if userID == "" {
		return "shard-0"
	}
	last := userID[len(userID)-1]
	if last >= '0' && last <= '9' {
		return "shard-" + string(last)
	}
	return "shard-0"
}

type entry struct {
	sessionID string
	status    domain.PresenceStatus
}

type registerCmd struct {
	userID    domain.UserID
	sessionID string
	status    domain.PresenceStatus
}

type unregisterCmd struct {
	userID    domain.UserID
	sessionID string
}

type queryCmd struct {
	userIDs []domain.UserID
	reply   chan map[domain.UserID]bool
}

// Shard is the actor owning the presence entries of one id partition.
// One goroutine serializes every mutation and read, so no state is
// shared.
type Shard struct {
	name     string
	commands chan interface{}
}

func newShard(name string) *Shard {
	s := &Shard{
		name:     name,
		commands: make(chan interface{}, 128),
	}
	go s.run()
	return s
}

func (s *Shard) run() {
	users := make(map[domain.UserID]entry)

	for cmd := range s.commands {
		switch cmd := cmd.(type) {
		case registerCmd:
			// A reconnect replaces the previous session outright.
			users[cmd.userID] = entry{sessionID: cmd.sessionID, status: cmd.status}

		case unregisterCmd:
			// A disconnect from an already-replaced session must not
			// clobber the live one.
			if e, ok := users[cmd.userID]; ok && e.sessionID == cmd.sessionID {
				delete(users, cmd.userID)
			}

		case queryCmd:
			result := make(map[domain.UserID]bool, len(cmd.userIDs))
			for _, id := range cmd.userIDs {
				if e, ok := users[id]; ok && e.status != domain.StatusInvisible {
					result[id] = true
				}
			}
			cmd.reply <- result
		}
	}
}

func (s *Shard) Register(userID domain.UserID, sessionID string, status domain.PresenceStatus) {
	s.commands <- registerCmd{userID: userID, sessionID: sessionID, status: status}
}

func (s *Shard) Unregister(userID domain.UserID, sessionID string) {
	s.commands <- unregisterCmd{userID: userID, sessionID: sessionID}
}

// Query reports which of the given ids are registered and visible.
// Invisible users are absent from the result, indistinguishable from
// offline ones.
func (s *Shard) Query(ctx context.Context, userIDs []domain.UserID) (map[domain.UserID]bool, error) {
	reply := make(chan map[domain.UserID]bool, 1)

	select {
	case s.commands <- queryCmd{userIDs: userIDs, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-reply:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shards owns the fixed shard set.
type Shards struct {
	byName map[string]*Shard
}

func NewShards() *Shards {
	byName := make(map[string]*Shard, shardCount)
	for i := 0; i < shardCount; i++ {
		name := "shard-" + strconv.Itoa(i)
		byName[name] = newShard(name)
	}
	return &Shards{byName: byName}
}

// For returns the shard responsible for the given user id.
func (s *Shards) For(userID domain.UserID) *Shard {
	return s.byName[ShardName(userID)]
}

func (s *Shards) get(name string) *Shard {
	return s.byName[name]
}
