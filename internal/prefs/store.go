package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

var accountRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

func ValidateAccount(account string) error {
	if !accountRe.MatchString(account) {
		return fmt.Errorf("invalid account")
	}
	return nil
}

// Set stores the default slippage tolerance for account.
func (s *Store) Set(ctx context.Context, account string, slippageBps uint32) (*Preference, error) {
	if err := ValidateAccount(account); err != nil {
		return nil, err
	}
	if err := models.ValidateTolerance(slippageBps); err != nil {
		return nil, err
	}

	p := &Preference{Account: account, SlippageBps: slippageBps, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal preference: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, prefKey(account), b, 0)
	pipe.SAdd(ctx, constants.RedisKeyPrefsIndex, account)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("set preference: %w", err)
	}

	return p, nil
}

func (s *Store) Get(ctx context.Context, account string) (*Preference, error) {
	if err := ValidateAccount(account); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, prefKey(account)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}

	var p Preference
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("unmarshal preference: %w", err)
	}
	return &p, nil
}

// SlippageBps returns the stored tolerance for account or ErrNotFound.
func (s *Store) SlippageBps(ctx context.Context, account string) (uint32, error) {
	p, err := s.Get(ctx, account)
	if err != nil {
		return 0, err
	}
	return p.SlippageBps, nil
}

func (s *Store) List(ctx context.Context) ([]*Preference, error) {
	accounts, err := s.client.SMembers(ctx, constants.RedisKeyPrefsIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list preferences index: %w", err)
	}

	keys := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if err := ValidateAccount(a); err != nil {
			continue
		}
		keys = append(keys, prefKey(a))
	}
	if len(keys) == 0 {
		return []*Preference{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget preferences: %w", err)
	}

	out := make([]*Preference, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var p Preference
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			continue
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, account string) error {
	if err := ValidateAccount(account); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, prefKey(account))
	pipe.SRem(ctx, constants.RedisKeyPrefsIndex, account)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	return nil
}

func prefKey(account string) string {
	return constants.RedisKeyPrefsPrefix + account
}
