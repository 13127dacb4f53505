package goroutine_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/goroutine"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	log, hook := test.NewNullLogger()
	rh := goroutine.NewRecoveryHandler(log)

	done := make(chan struct{})
	rh.SafeGo("worker", func() {
		defer close(done)
		panic("сбой")
	})
	<-done

	require.Eventually(t, func() bool { return len(hook.AllEntries()) == 1 }, time.Second, 10*time.Millisecond)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "worker", entry.Data["goroutine"])
}

func TestSafeGoWithContext_PassesContext(t *testing.T) {
	log, _ := test.NewNullLogger()
	rh := goroutine.NewRecoveryHandler(log)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")
	got := make(chan any, 1)
	rh.SafeGoWithContext(ctx, "ctx", func(ctx context.Context) {
		got <- ctx.Value(key{})
	})

	assert.Equal(t, "value", <-got)
}
