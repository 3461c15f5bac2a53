package submitter

import (
	"context"
	"sync"

	"repo-scan/analysis"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Analyzer interface {
	Analyze(ctx context.Context, repoURL string) (*analysis.Response, error)
}

type Renderer interface {
	Render(resp *analysis.Response) error
}

// Submitter sends repository URLs to the analysis API without blocking the
// caller and hands each response to the Renderer. Only the most recent
// submission may render: starting a new one cancels the one in flight, and
// a response that arrives after it has been superseded is dropped.
type Submitter struct {
	API      Analyzer
	Renderer Renderer
	Log      *logrus.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Submit schedules one request for repoURL and returns its generation.
func (s *Submitter) Submit(ctx context.Context, repoURL string) uint64 {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, gen, repoURL)
	}()

	return gen
}

func (s *Submitter) run(ctx context.Context, gen uint64, repoURL string) {
	log := s.Log.WithFields(logrus.Fields{
		"submission": uuid.NewString(),
		"generation": gen,
		"repo_url":   repoURL,
	})

	resp, err := s.API.Analyze(ctx, repoURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		log.Debug("discarding superseded analysis")
		return
	}
	if err != nil {
		log.WithError(err).Error("analysis request failed")
		return
	}
	if err := s.Renderer.Render(resp); err != nil {
		log.WithError(err).Error("rendering analysis response")
		return
	}
	log.WithField("kind", resp.Kind().String()).Info("analysis rendered")
}

// Generation returns the number of the latest submission.
func (s *Submitter) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Wait blocks until every scheduled submission has settled.
func (s *Submitter) Wait() {
	s.wg.Wait()
}
