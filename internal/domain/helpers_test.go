package domain

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

var now = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

func newRegistry(t *testing.T) (*Registry, *odmtest.Database) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	db := odmtest.NewDatabase()
	conn := odm.NewConnection(db.Dialer(),
		odm.WithClock(func() time.Time { return now }),
		odm.WithLogger(logrus.NewEntry(logger)),
	)
	require.NoError(t, conn.Connect(context.Background()))
	return NewRegistry(conn), db
}
