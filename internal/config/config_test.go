package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DBConfig.Host)
	assert.Equal(t, 5432, cfg.DBConfig.Port)
	assert.Equal(t, "braintree_status_reports", cfg.KafkaStatusReportsTopic)
	assert.Equal(t, "transaction_state_changes", cfg.KafkaStateChangesTopic)
	assert.Equal(t, 60*time.Second, cfg.RedisConfig.LockTTL)
	assert.Equal(t, 40*time.Second, cfg.RequestTimeout())
	assert.Greater(t, cfg.RedisConfig.LockTTL, cfg.RequestTimeout())
	assert.Equal(t, "Sandbox", cfg.BraintreeConfig.Environment)
	assert.Equal(t, 5, cfg.BraintreeConfig.BreakerMaxFailures)
	assert.Equal(t, 8082, cfg.HTTPPort)
}

func TestLoadConfigFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PAYMENTS_DB_PORT", "6543")
	t.Setenv("KAFKA_BROKER_URL", "k1:9092, k2:9092,")
	t.Setenv("REDIS_LOCK_TTL", "45s")
	t.Setenv("BRAINTREE_ENVIRONMENT", "Production")
	t.Setenv("BRAINTREE_TIMEOUT", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.DBConfig.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.GetKafkaBrokers())
	assert.Equal(t, 45*time.Second, cfg.RedisConfig.LockTTL)
	assert.Equal(t, "Production", cfg.BraintreeConfig.Environment)
	assert.Equal(t, 30*time.Second, cfg.BraintreeConfig.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetCORSAllowedOrigins())
}

func TestLoadConfigRejectsNonPositiveBreakerThreshold(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BRAINTREE_BREAKER_MAX_FAILURES", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsLockTTLShorterThanGatewayCall(t *testing.T) {
	tests := []struct {
		name    string
		lockTTL string
		timeout string
		wantErr bool
	}{
		{"equal to gateway timeout", "30s", "30s", true},
		{"inside the margin", "35s", "30s", true},
		{"exactly timeout plus margin", "40s", "30s", true},
		{"above timeout plus margin", "41s", "30s", false},
		{"short timeout", "15s", "2s", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv("REDIS_LOCK_TTL", tt.lockTTL)
			t.Setenv("BRAINTREE_TIMEOUT", tt.timeout)

			_, err := LoadConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "REDIS_LOCK_TTL")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGetDBMigrationConnectionString(t *testing.T) {
	cfg := &Config{}
	cfg.DBConfig.Host = "db"
	cfg.DBConfig.Port = 5432
	cfg.DBConfig.User = "u"
	cfg.DBConfig.Password = "p"
	cfg.DBConfig.Name = "payments"
	cfg.DBConfig.SSLMode = "disable"

	assert.Equal(t, "postgres://u:p@db:5432/payments?sslmode=disable", cfg.GetDBMigrationConnectionString())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
