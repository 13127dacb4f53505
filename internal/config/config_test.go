package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.False(t, cfg.FreezeOnDispute)
	assert.True(t, cfg.AutoStartOnAccept)
	assert.Equal(t, 25, cfg.InProgressBaseline)
	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
	assert.NotEmpty(t, cfg.JWTSecret)

	policies := cfg.Policies()
	assert.Equal(t, valueobject.MilestoneApprovalSelf, policies.For(valueobject.KindJob).MilestoneApproval)
	assert.Equal(t, valueobject.MilestoneApprovalPayer, policies.For(valueobject.KindGigOrder).MilestoneApproval)
}

func TestLoad_Overrides(t *testing.T) {
	mediator := uuid.New()
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("FREEZE_ON_DISPUTE", "true")
	t.Setenv("JOB_MILESTONE_APPROVAL", "payer")
	t.Setenv("AUTO_START_ON_ACCEPT", "false")
	t.Setenv("MEDIATOR_IDS", " "+mediator.String()+" ,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.True(t, cfg.FreezeOnDispute)
	assert.False(t, cfg.AutoStartOnAccept)
	assert.Equal(t, valueobject.MilestoneApprovalPayer, cfg.JobMilestoneApproval)
	assert.Equal(t, []uuid.UUID{mediator}, cfg.MediatorIDs)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"driver":   {"STORAGE_DRIVER", "mongo"},
		"policy":   {"GIG_MILESTONE_APPROVAL", "nobody"},
		"baseline": {"IN_PROGRESS_BASELINE", "101"},
		"bool":     {"FREEZE_ON_DISPUTE", "maybe"},
		"duration": {"OUTBOX_POLL_INTERVAL", "soon"},
		"mediator": {"MEDIATOR_IDS", "not-a-uuid"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example")
	t.Setenv("STORAGE_DRIVER", "memory")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_DRIVER", "postgres")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
