package odm

import (
	"time"

	"github.com/sirupsen/logrus"

	"docmapper/internal/logging"
	"docmapper/internal/metrics"
)

// observe records one driver operation. Call it as
// `defer observe(logger, coll, "find", time.Now(), &err)`.
func observe(logger *logrus.Entry, collection, operation string, start time.Time, errp *error) {
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	if errp != nil && *errp != nil {
		outcome = metrics.OutcomeError
	}

	metrics.Operations.WithLabelValues(collection, operation, outcome).Inc()
	metrics.OperationDuration.WithLabelValues(collection, operation).Observe(elapsed.Seconds())

	entry := logger.WithFields(logging.Context{
		Collection: collection,
		Operation:  operation,
		Event:      "odm_op",
	}.Fields()).WithField("duration_ms", elapsed.Milliseconds())
	if outcome == metrics.OutcomeError {
		entry.WithError(*errp).Debug("driver operation failed")
		return
	}
	entry.Debug("driver operation")
}
