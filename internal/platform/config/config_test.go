package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := fromLookup(lookup(map[string]string{"ADMIN_SECRET": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "lifeline", cfg.Store.MongoDatabase)
	assert.Equal(t, "lifeline:events", cfg.Redis.Channel)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 128, cfg.MirrorRepairQueue)
}

func TestFromLookupOverrides(t *testing.T) {
	cfg, err := fromLookup(lookup(map[string]string{
		"ADMIN_SECRET":        "s3cret",
		"PORT":                "5000",
		"STORE_DRIVER":        "postgres",
		"DATABASE_URL":        "postgres://localhost/lifeline",
		"KAFKA_BROKERS":       "k1:9092, k2:9092,k1:9092",
		"KAFKA_TOPIC":         "events",
		"MIRROR_REPAIR_QUEUE": "16",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "events", cfg.Kafka.Topic)
	assert.Equal(t, 16, cfg.MirrorRepairQueue)
}

func TestFromLookupAddrWinsOverPort(t *testing.T) {
	cfg, err := fromLookup(lookup(map[string]string{"ADMIN_SECRET": "x", "PORT": "5000", "LIFELINE_ADDR": "127.0.0.1:7000"}))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestFromLookupErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing admin secret", env: map[string]string{}},
		{name: "unknown driver", env: map[string]string{"ADMIN_SECRET": "x", "STORE_DRIVER": "sqlite"}},
		{name: "postgres without url", env: map[string]string{"ADMIN_SECRET": "x", "STORE_DRIVER": "postgres"}},
		{name: "mongo without uri", env: map[string]string{"ADMIN_SECRET": "x", "STORE_DRIVER": "mongo"}},
		{name: "bad queue size", env: map[string]string{"ADMIN_SECRET": "x", "MIRROR_REPAIR_QUEUE": "zero"}},
		{name: "non-positive queue size", env: map[string]string{"ADMIN_SECRET": "x", "MIRROR_REPAIR_QUEUE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromLookup(lookup(tt.env))
			assert.Error(t, err)
		})
	}
	_, err := fromLookup(lookup(map[string]string{}))
	assert.ErrorIs(t, err, ErrMissingAdminSecret)
}
