// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package promcollector

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RecordCacheOp("put", time.Millisecond, nil)
	c.RecordCacheOp("get", time.Millisecond, errors.New("boom"))
	c.RecordTask("sum", 2*time.Millisecond, nil)
	c.RecordDial("node-0", nil)
	c.RecordDial("node-0", errors.New("refused"))
	c.RecordPayload(100, true)
	c.RecordPayload(20, false)
	c.RecordPayload(30, false)

	assert.Equal(t, 2, testutil.CollectAndCount(c.cacheLatency))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dials.WithLabelValues("node-0", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dials.WithLabelValues("node-0", "success")))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.payloadBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.frames.WithLabelValues("true")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "gridclient_task_seconds")
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}
