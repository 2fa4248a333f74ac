package realtime

import (
	"testing"

	"chat_room/internal/service"
	"chat_room/internal/testutil"
	"chat_room/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Gateway, *Registry, *testutil.Store) {
	t.Helper()

	cfg := testutil.Config()
	log := logger.NewNop()
	store := testutil.NewStore()
	services := service.NewServices(store.Repositories(), cfg, log)
	registry := NewRegistry()
	return NewGateway(NewHub(log), registry, services, cfg.Chat, log), registry, store
}

func TestGateway_DisconnectMarksLastConnectionOffline(t *testing.T) {
	gateway, registry, store := newTestGateway(t)
	alice := store.AddUser("alice")

	sess := authenticatedSession(t, registry, alice)
	sess.attach(testClient(8))
	gateway.onConnect(sess, 0)
	require.True(t, store.IsOnline(alice.ID))

	gateway.onDisconnect(sess)
	assert.False(t, store.IsOnline(alice.ID))
	assert.Zero(t, registry.Len())

	select {
	case <-sess.Client().Done():
	default:
		t.Fatal("client should be closed")
	}
}

func TestGateway_DisconnectKeepsOnlineWhenTabOpensDuringWrite(t *testing.T) {
	gateway, registry, store := newTestGateway(t)
	alice := store.AddUser("alice")

	sess := authenticatedSession(t, registry, alice)
	sess.attach(testClient(8))
	gateway.onConnect(sess, 0)

	// вторая вкладка аутентифицируется ровно между проверкой соединений и записью offline
	opened := false
	store.OnSetOnline = func(userID int64, online bool) {
		if online || opened {
			return
		}
		opened = true
		second := authenticatedSession(t, registry, alice)
		second.attach(testClient(8))
	}

	gateway.onDisconnect(sess)
	require.True(t, opened)
	assert.True(t, store.IsOnline(alice.ID))
	assert.Equal(t, 1, registry.UserConnections(alice.ID))
}

func TestGateway_DisconnectIsIdempotent(t *testing.T) {
	gateway, registry, store := newTestGateway(t)
	alice := store.AddUser("alice")

	sess := authenticatedSession(t, registry, alice)
	sess.attach(testClient(8))
	gateway.onConnect(sess, 0)

	gateway.onDisconnect(sess)

	// повторный вызов не трогает статус, даже если пользователь снова онлайн
	other := authenticatedSession(t, registry, alice)
	other.attach(testClient(8))
	gateway.onConnect(other, 0)
	gateway.onDisconnect(sess)
	assert.True(t, store.IsOnline(alice.ID))
}
