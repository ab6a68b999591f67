package audit_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prior-it/tweb/audit"
	"github.com/prior-it/tweb/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSink(t *testing.T) {
	ctx := context.Background()
	sink, err := audit.NewPostgresSinkFromDB(ctx, tests.DB(t))
	require.NoError(t, err)
	defer sink.Close()

	t.Run("ok: records can be listed", func(t *testing.T) {
		start := time.Now().Add(-time.Minute)
		ip := net.ParseIP(tests.Faker.IPv4Address())
		require.NoError(t, sink.Record(ctx, ip, time.Now()))
		require.NoError(t, sink.Record(ctx, net.ParseIP("::1"), time.Now()))

		connections, err := sink.Since(ctx, start)
		require.NoError(t, err)
		require.Len(t, connections, 2)
		assert.True(t, ip.Equal(connections[0].IP))
		assert.True(t, net.ParseIP("::1").Equal(connections[1].IP))
	})

	t.Run("err: invalid ip", func(t *testing.T) {
		assert.Error(t, sink.Record(ctx, net.IP{1, 2, 3}, time.Now()))
	})
}
