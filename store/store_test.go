package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/healthlens/schema"
	"github.com/spektr-org/healthlens/source"
)

const testDataset = "country,year,X\nIE,2015,10\nIE,2016,20\nIN,2015,5\n"
const testTaxonomy = "health_dataset,column\nDemo,X\n"

// countingFetcher serves fixed payloads and counts calls per resource.
type countingFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	bodies  map[string]string
	fail    map[string]error
	release chan struct{}
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{
		calls:  map[string]int{},
		bodies: map[string]string{"dataset": testDataset, "taxonomy": testTaxonomy},
		fail:   map[string]error{},
	}
}

func (f *countingFetcher) Fetch(ctx context.Context, r source.Resource) ([]byte, error) {
	f.mu.Lock()
	f.calls[r.Name]++
	err := f.fail[r.Name]
	body := f.bodies[r.Name]
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (f *countingFetcher) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestLoadPublishesOnce(t *testing.T) {
	f := newCountingFetcher()
	s := New(f)

	var published []schema.Dataset
	s.Subscribe(func(d schema.Dataset) { published = append(published, d) })

	assert.Equal(t, Uninitialized, s.State())
	assert.True(t, s.Get().IsEmpty())

	out, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Loaded, out)
	assert.Equal(t, Ready, s.State())
	assert.Len(t, s.Get().Records, 3)
	assert.Equal(t, []string{"X"}, s.Get().Variables)
	require.Len(t, published, 1)
	assert.Equal(t, []string{"Demo"}, published[0].Taxonomy.CategoryNames())
}

func TestEverySubscriberSeesThePublishedDataset(t *testing.T) {
	s := New(newCountingFetcher())

	var order []string
	s.Subscribe(func(d schema.Dataset) { order = append(order, "first") })
	s.Subscribe(func(d schema.Dataset) {
		order = append(order, "second")
		// Subscribing from inside a callback must not disturb the running fan-out.
		s.Subscribe(func(schema.Dataset) { order = append(order, "late") })
	})

	_, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "late"}, order)
}

func TestSequentialLoadsFetchOnce(t *testing.T) {
	f := newCountingFetcher()
	s := New(f)

	for i := 0; i < 5; i++ {
		out, err := s.Load(context.Background())
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, Loaded, out)
		} else {
			assert.Equal(t, AlreadyLoaded, out)
		}
	}
	assert.Equal(t, 1, f.count("dataset"))
	assert.Equal(t, 1, f.count("taxonomy"))
}

func TestConcurrentLoadsCollapse(t *testing.T) {
	f := newCountingFetcher()
	f.release = make(chan struct{})
	s := New(f)

	var published int32
	s.Subscribe(func(schema.Dataset) { atomic.AddInt32(&published, 1) })

	const callers = 16
	var wg sync.WaitGroup
	outcomes := make([]Outcome, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = s.Load(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Contains(t, []Outcome{Loaded, AlreadyLoaded}, outcomes[i])
	}
	assert.Equal(t, 1, f.count("dataset"))
	assert.Equal(t, 1, f.count("taxonomy"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&published))
}

func TestLoadFailureLeavesStoreEmptyAndRetries(t *testing.T) {
	f := newCountingFetcher()
	boom := errors.New("network down")
	f.fail["taxonomy"] = boom
	s := New(f)

	published := 0
	s.Subscribe(func(schema.Dataset) { published++ })

	_, err := s.Load(context.Background())
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "taxonomy", le.Resource)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, Failed, s.State())
	assert.True(t, s.Get().IsEmpty(), "no partial dataset is published")
	assert.Equal(t, 0, published)
	assert.Equal(t, err, s.Err())

	f.mu.Lock()
	delete(f.fail, "taxonomy")
	f.mu.Unlock()

	out, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Loaded, out)
	assert.Equal(t, Ready, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, published)
}

func TestMalformedPayloadIsLoadFailure(t *testing.T) {
	f := newCountingFetcher()
	f.bodies["dataset"] = "not,a,dataset\n1,2,3\n"
	s := New(f)

	_, err := s.Load(context.Background())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "dataset", le.Resource)
	assert.Equal(t, Failed, s.State())
	assert.True(t, s.Get().IsEmpty())
}

func TestSubscribeAfterReadyFiresImmediately(t *testing.T) {
	s := New(newCountingFetcher())
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	var got schema.Dataset
	s.Subscribe(func(d schema.Dataset) { got = d })
	assert.Len(t, got.Records, 3)
}

func TestCustomResourcesAndParsers(t *testing.T) {
	f := newCountingFetcher()
	f.bodies["ds"] = "ignored"
	f.bodies["tx"] = "ignored"

	s := New(f,
		WithResources(source.Resource{Name: "ds"}, source.Resource{Name: "tx"}),
		WithParsers(nil, func([]byte) (schema.Taxonomy, error) {
			return schema.NewTaxonomy([][2]string{{"A", "B"}}), nil
		}),
	)

	_, err := s.Load(context.Background())
	require.Error(t, err, "default dataset parser rejects the payload")
	assert.Equal(t, 1, f.count("ds"))
	assert.Equal(t, 1, f.count("tx"))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "already_loaded", AlreadyLoaded.String())
}
