package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_NoopProvider(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, metrics, "GET", "/api/hospitals/nearby", 200, 5*time.Millisecond)
		RecordDBMetric(ctx, metrics, "find_nearby", time.Millisecond)
		RecordCacheHit(ctx, metrics, "hospital")
		RecordCacheMiss(ctx, metrics, "hospital")
		RecordSyncPage(ctx, metrics, "110000", 100)
		RecordSyncPersisted(ctx, metrics, "110000", 3, 1)
		RecordSyncCeiling(ctx, metrics, "110000")
		RecordNearbyTruncated(ctx, metrics)
	})
}

func TestRecorders_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/", 200, time.Millisecond)
		RecordSyncPage(ctx, nil, "110000", 1)
		RecordNearbyTruncated(ctx, nil)
	})
}

func TestLoggerFromContext_PrefersContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctxLogger := zerolog.New(&buf).With().Str("request_id", "req-1").Logger()
	ctx := ctxLogger.WithContext(context.Background())

	LoggerFromContext(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestLoggerFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	LoggerFromContext(context.Background()).Info().Msg("global")
	assert.Contains(t, buf.String(), `"message":"global"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}
