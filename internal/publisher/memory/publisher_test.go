package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "recipes-promoted", map[string]int64{"item_id": 101})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "recipes-promoted", map[string]int64{"item_id": 102})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "recipes-promoted", msgs[0].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "recipes-promoted", pub.Messages()[0].Topic, "Messages must return a copy")
}
