//go:build integration

package conversations

import (
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"taskchat/chat"
	"taskchat/testutil"
)

func TestRedisStore_Contract(t *testing.T) {
	url := testutil.StartRedis(t)
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	runContractTests(t, func(t *testing.T) chat.ConversationStore {
		prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
		s := NewRedisStore(redis.NewClient(opt), prefix)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
