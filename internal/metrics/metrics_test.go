// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package metrics

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestReconcileClassificationsCounter(t *testing.T) {
	c := ReconcileClassifications.WithLabelValues("stream", "watched")
	before := counterValue(t, c)

	ReconcileClassifications.WithLabelValues("stream", "watched").Inc()

	if got := counterValue(t, c); got != before+1 {
		t.Errorf("expected counter %v, got %v", before+1, got)
	}
}

func TestObserveCatalogRequestRecordsErrors(t *testing.T) {
	errCounter := CatalogRequestErrors.WithLabelValues("fetch_series")
	before := counterValue(t, errCounter)

	ObserveCatalogRequest("fetch_series", 5*time.Millisecond, nil)
	if got := counterValue(t, errCounter); got != before {
		t.Errorf("nil error must not increment error counter, got %v (was %v)", got, before)
	}

	ObserveCatalogRequest("fetch_series", 5*time.Millisecond, errors.New("boom"))
	if got := counterValue(t, errCounter); got != before+1 {
		t.Errorf("expected error counter %v, got %v", before+1, got)
	}
}

func TestFollowCounterEventLabels(t *testing.T) {
	insert := FollowCounterEvents.WithLabelValues("INSERT")
	remove := FollowCounterEvents.WithLabelValues("REMOVE")
	beforeInsert := counterValue(t, insert)
	beforeRemove := counterValue(t, remove)

	FollowCounterEvents.WithLabelValues("INSERT").Add(3)
	FollowCounterEvents.WithLabelValues("REMOVE").Inc()

	if got := counterValue(t, insert); got != beforeInsert+3 {
		t.Errorf("expected INSERT counter %v, got %v", beforeInsert+3, got)
	}
	if got := counterValue(t, remove); got != beforeRemove+1 {
		t.Errorf("expected REMOVE counter %v, got %v", beforeRemove+1, got)
	}
}
