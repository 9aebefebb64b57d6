// ABOUTME: Tests for the in-process change feed
// ABOUTME: Covers topic isolation, coalescing and cancellation
package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/leadsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToMatchingTopic(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	contacts, cancelContacts := hub.Subscribe("user-1", models.KindContacts)
	defer cancelContacts()
	opps, cancelOpps := hub.Subscribe("user-1", models.KindOpportunities)
	defer cancelOpps()
	other, cancelOther := hub.Subscribe("user-2", models.KindContacts)
	defer cancelOther()

	require.NoError(t, hub.Publish(context.Background(), models.Change{OwnerUserID: "user-1", Kind: models.KindContacts}))

	select {
	case change := <-contacts:
		assert.Equal(t, models.KindContacts, change.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected contacts change")
	}

	select {
	case <-opps:
		t.Fatal("opportunities subscriber should not be notified")
	case <-other:
		t.Fatal("other owner should not be notified")
	default:
	}
}

func TestHubCoalescesBursts(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("user-1", models.KindContacts)
	defer cancel()

	for i := 0; i < 10; i++ {
		require.NoError(t, hub.Publish(context.Background(), models.Change{OwnerUserID: "user-1", Kind: models.KindContacts}))
	}

	assert.Len(t, ch, 1)
}

func TestHubCancelIsIdempotent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("user-1", models.KindContacts)
	assert.Equal(t, 1, hub.Subscribers("user-1", models.KindContacts))

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
	assert.Equal(t, 0, hub.Subscribers("user-1", models.KindContacts))

	// Publishing after cancel must not panic on the closed channel.
	require.NoError(t, hub.Publish(context.Background(), models.Change{OwnerUserID: "user-1", Kind: models.KindContacts}))
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("user-1", models.KindContacts)
	require.NoError(t, hub.Close())

	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := hub.Subscribe("user-1", models.KindContacts)
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed hub returns a closed channel")
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "leadsync:changes:user-1:contacts", ChannelName("user-1", models.KindContacts))
}
