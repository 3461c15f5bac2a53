package data

import (
	"context"
	"errors"
	"time"

	"repo-scan/analysis"
	"repo-scan/checks"
	"repo-scan/config"
	"repo-scan/pypi"
	"repo-scan/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Storage interface {
	UpsertPackageScores(ctx context.Context, scores []storage.PackageScore) error
	GetFreshScores(ctx context.Context, names []string, since time.Time) (map[string]storage.PackageScore, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RequirementsSource interface {
	GetRequirements(ctx context.Context, repoURL string) ([]string, error)
}

type PackageAPI interface {
	GetPackage(ctx context.Context, name string) (*pypi.Package, error)
}

type DataManager struct {
	Store         Storage
	Source        RequirementsSource
	API           PackageAPI
	Log           *logrus.Logger
	MaxConcurrent int
	ScoreTTL      time.Duration
	Now           func() time.Time

	group singleflight.Group
}

type scored struct {
	score  storage.PackageScore
	cached bool
	// Lookups that failed in transport are not cached.
	transient bool
}

func (dm *DataManager) now() time.Time {
	if dm.Now != nil {
		return dm.Now()
	}
	return time.Now()
}

// AnalyzeRepository scores every requirement of repoURL and returns the
// summary response, or the "no dependencies" message response when the
// repository lists none or cannot be read.
func (dm *DataManager) AnalyzeRepository(ctx context.Context, repoURL string) (*analysis.Response, error) {
	log := dm.Log.WithField("repo_url", repoURL)
	log.Info("Analyzing repository")

	names, err := dm.Source.GetRequirements(ctx, repoURL)
	if err != nil {
		log.WithError(err).Warn("failed to read requirements")
		names = nil
	}
	if len(names) == 0 {
		return analysis.NewMessage(config.NoDependenciesMessage), nil
	}

	cached, err := dm.Store.GetFreshScores(ctx, names, dm.now().Add(-dm.ScoreTTL))
	if err != nil {
		log.WithError(err).Error("failed to get cached scores")
		return nil, err
	}

	results := make([]scored, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dm.maxConcurrent())

	for i, name := range names {
		if score, ok := cached[storage.NormalizeName(name)]; ok {
			results[i] = scored{score: score, cached: true}
			continue
		}
		g.Go(func() error {
			res, err := dm.scorePackage(gctx, name)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		fresh []storage.PackageScore
		deps  = make([]analysis.DependencyResult, 0, len(names))
		total float64
	)
	for i, res := range results {
		if !res.cached && !res.transient {
			fresh = append(fresh, res.score)
		}
		deps = append(deps, analysis.DependencyResult{
			PackageName:             names[i],
			VulnerabilityPercentage: res.score.VulnerabilityPercentage,
		})
		total += res.score.VulnerabilityPercentage
	}

	if len(fresh) > 0 {
		if err := dm.Store.UpsertPackageScores(ctx, fresh); err != nil {
			log.WithError(err).Error("failed to upsert package scores to database")
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"packages": len(names),
		"cached":   len(names) - len(fresh),
	}).Info("Repository analyzed")

	return analysis.NewSummary(total/float64(len(names)), deps), nil
}

// scorePackage looks the package up on PyPI and runs the checks. Concurrent
// lookups of the same name share one request, which runs detached from any
// single caller so one cancelled analysis cannot fail the others waiting on it.
func (dm *DataManager) scorePackage(ctx context.Context, name string) (scored, error) {
	if err := ctx.Err(); err != nil {
		return scored{}, err
	}

	lookupCtx := context.WithoutCancel(ctx)
	ch := dm.group.DoChan(storage.NormalizeName(name), func() (interface{}, error) {
		pkg, err := dm.API.GetPackage(lookupCtx, name)
		transient := false
		if err != nil {
			if !errors.Is(err, pypi.ErrNotFound) {
				dm.Log.WithError(err).WithField("package", name).Warn("package lookup failed")
				transient = true
			}
			pkg = nil
		}

		result := checks.Run(pkg)
		return scored{
			score: storage.PackageScore{
				Name:                    name,
				VulnerabilityPercentage: result.Percentage(),
				Typosquatting:           result.Typosquatting,
				SupplyChain:             result.SupplyChain,
				CodeInjection:           result.CodeInjection,
				CredentialHarvesting:    result.CredentialHarvesting,
				CheckedAt:               dm.now(),
			},
			transient: transient,
		}, nil
	})

	select {
	case <-ctx.Done():
		return scored{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return scored{}, res.Err
		}
		return res.Val.(scored), nil
	}
}

func (dm *DataManager) maxConcurrent() int {
	if dm.MaxConcurrent <= 0 {
		return config.DefaultMaxConcurrent
	}
	return dm.MaxConcurrent
}

// PurgeExpired drops cached scores older than the TTL.
func (dm *DataManager) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := dm.Store.PurgeBefore(ctx, dm.now().Add(-dm.ScoreTTL))
	if err != nil {
		dm.Log.WithError(err).Error("failed to purge expired scores")
		return 0, err
	}
	dm.Log.Infof("Purged %d expired package scores", removed)
	return removed, nil
}
