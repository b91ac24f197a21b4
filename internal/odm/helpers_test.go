package odm_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"docmapper/internal/odm"
	"docmapper/internal/odm/odmtest"
)

var t0 = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func quietLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger)
}

func connect(t *testing.T, opts ...odm.Option) (*odm.Connection, *odmtest.Database) {
	t.Helper()

	db := odmtest.NewDatabase()
	base := []odm.Option{odm.WithClock(fixedClock(t0)), odm.WithLogger(quietLogger())}
	conn := odm.NewConnection(db.Dialer(), append(base, opts...)...)
	require.NoError(t, conn.Connect(context.Background()))
	return conn, db
}
