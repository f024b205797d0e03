package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeDependency struct {
	name      string
	dependsOn []string
	startErrs int
	starts    int
	stops     int
	order     *[]string
	stopOrder *[]string
}

func (d *fakeDependency) GetName() string { return d.name }

func (d *fakeDependency) DependsOn() []string { return d.dependsOn }

func (d *fakeDependency) Start(ctx context.Context) error {
	d.starts++
	if d.order != nil {
		*d.order = append(*d.order, d.name)
	}
	if d.startErrs > 0 {
		d.startErrs--
		return errors.New("not ready")
	}
	return nil
}

func (d *fakeDependency) Stop(ctx context.Context) error {
	d.stops++
	if d.stopOrder != nil {
		*d.stopOrder = append(*d.stopOrder, d.name)
	}
	return nil
}

func TestStartRespectsDependencyOrder(t *testing.T) {
	var order []string
	db := &fakeDependency{name: "database", order: &order}
	producer := &fakeDependency{name: "kafka-producer", order: &order}
	consumer := &fakeDependency{name: "kafka-consumer", dependsOn: []string{"database", "kafka-producer"}, order: &order}

	s := NewStartup(testLogger(), 1)
	s.AddDependency(consumer)
	s.AddDependency(db)
	s.AddDependency(producer)

	require.NoError(t, s.Start(context.Background()))

	require.Len(t, order, 3)
	assert.Equal(t, "kafka-consumer", order[2])
	assert.Equal(t, 1, db.starts)
	assert.Equal(t, 1, producer.starts)
}

func TestStartRetriesFailedDependency(t *testing.T) {
	flaky := &fakeDependency{name: "database", startErrs: 1}

	s := NewStartup(testLogger(), 3)
	s.AddDependency(flaky)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, flaky.starts)
}

func TestStartGivesUpAfterMaxAttempts(t *testing.T) {
	broken := &fakeDependency{name: "database", startErrs: 10}

	s := NewStartup(testLogger(), 2)
	s.AddDependency(broken)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, broken.starts)
}

func TestStopReversesStartOrder(t *testing.T) {
	var started, stopped []string
	db := &fakeDependency{name: "database", order: &started, stopOrder: &stopped}
	producer := &fakeDependency{name: "kafka-producer", order: &started, stopOrder: &stopped}
	consumer := &fakeDependency{name: "kafka-consumer", dependsOn: []string{"database", "kafka-producer"}, order: &started, stopOrder: &stopped}

	s := NewStartup(testLogger(), 1)
	s.AddDependency(consumer)
	s.AddDependency(db)
	s.AddDependency(producer)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	require.Len(t, stopped, 3)
	for i := range started {
		assert.Equal(t, started[i], stopped[len(stopped)-1-i])
	}
	// The consumer must release the database before it closes.
	assert.Equal(t, "kafka-consumer", stopped[0])
	assert.Equal(t, 1, db.stops)
	assert.Equal(t, 1, consumer.stops)
}
