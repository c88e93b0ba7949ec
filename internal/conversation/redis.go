package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces conversation keys in a shared Redis.
const KeyPrefix = "emogotchi:conv:"

// Redis keeps state as JSON under KeyPrefix+uuid.
type Redis struct {
	Client redis.Cmdable
	// TTL expires idle conversations; zero keeps them forever.
	TTL time.Duration
}

// NewRedis returns a Store over client.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{Client: client, TTL: ttl}
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, uuid string) (State, error) {
	b, err := r.Client.Get(ctx, KeyPrefix+uuid).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{UUID: uuid}, nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, err
	}
	st.UUID = uuid
	return st, nil
}

// Save implements Store.
func (r *Redis) Save(ctx context.Context, st State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, KeyPrefix+st.UUID, b, r.TTL).Err()
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, uuid string) error {
	return r.Client.Del(ctx, KeyPrefix+uuid).Err()
}
