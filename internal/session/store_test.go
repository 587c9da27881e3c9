package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvscout/cvscout/pkg/models"
)

func TestResultStore_PutGet(t *testing.T) {
	s := NewResultStore(time.Minute)
	defer s.Close()

	status := &models.CrawlStatus{CrawlID: "c1", Phase: models.PhaseCompleted, RecordsFound: 3}
	s.Put("c1", status)

	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, 3, got.RecordsFound)

	_, ok = s.Get("unknown")
	assert.False(t, ok)
}

func TestResultStore_Expiry(t *testing.T) {
	s := NewResultStore(10 * time.Millisecond)
	defer s.Close()

	s.Put("c1", &models.CrawlStatus{CrawlID: "c1", Phase: models.PhaseFailed})
	time.Sleep(25 * time.Millisecond)

	_, ok := s.Get("c1")
	assert.False(t, ok)

	stats := s.Stats()
	assert.Equal(t, 0, stats["entries"])
}
