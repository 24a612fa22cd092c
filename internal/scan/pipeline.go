// Package scan runs the photo analysis flow: capture an image, have it
// analyzed, check the ingredients against the user's allergens and log the
// meal.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nutritrack/internal/meal"
)

// ErrScanInProgress is returned when a scan is started while another one
// for the same pipeline has not finished.
var ErrScanInProgress = errors.New("a scan is already in progress")

// Source produces the image for a scan, from an upload or a camera snapshot.
type Source interface {
	Capture(ctx context.Context) (meal.Image, error)
}

// Analyzer turns a food photo into structured nutrition facts.
type Analyzer interface {
	AnalyzeMeal(ctx context.Context, img meal.Image) (*meal.Analysis, error)
}

// AllergenLister fetches the user's allergens.
type AllergenLister interface {
	ListAllergens(ctx context.Context, email string) ([]meal.Allergen, error)
}

// MealLogger persists meal log entries.
type MealLogger interface {
	CreateMealLog(ctx context.Context, e *meal.Entry) (*meal.Entry, error)
}

// Archiver keeps a copy of scanned images.
type Archiver interface {
	Save(ctx context.Context, hash string, img meal.Image) (string, error)
}

// Config holds a pipeline's collaborators. Cache and Archive are optional.
type Config struct {
	Owner    string
	Analyzer Analyzer
	Logs     MealLogger
	Cache    meal.Store
	Archive  Archiver
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Result describes one scan attempt. When saving fails the analysis is
// still present and State stays AllergenChecked.
type Result struct {
	ID          string         `json:"id"`
	State       State          `json:"state"`
	Transitions []State        `json:"transitions"`
	ImageHash   string         `json:"imageHash,omitempty"`
	Analysis    *meal.Analysis `json:"analysis,omitempty"`
	Conflicts   []string       `json:"conflicts"`
	Warning     string         `json:"warning,omitempty"`
	Entry       *meal.Entry    `json:"entry,omitempty"`
	ImagePath   string         `json:"imagePath,omitempty"`
	Cached      bool           `json:"cached"`
	Message     string         `json:"message,omitempty"`

	// Err is why the scan failed. SaveErr is why a parsed scan was not
	// persisted.
	Err     error `json:"-"`
	SaveErr error `json:"-"`
}

func (r *Result) move(to State) {
	if !canMove(r.State, to) {
		panic(fmt.Sprintf("scan: illegal transition %s -> %s", r.State, to))
	}
	r.State = to
	r.Transitions = append(r.Transitions, to)
}

func (r *Result) fail(err error, message string) *Result {
	r.move(Failed)
	r.Err = err
	r.Message = message
	return r
}

// Pipeline runs scans for one user. The allergen list is fetched once when
// the pipeline is created.
type Pipeline struct {
	owner     string
	analyzer  Analyzer
	logs      MealLogger
	cache     meal.Store
	archive   Archiver
	log       logrus.FieldLogger
	now       func() time.Time
	allergens []string

	busy atomic.Bool

	mu   sync.Mutex
	last *Result
}

// NewPipeline fetches the owner's allergens and returns a ready pipeline.
func NewPipeline(ctx context.Context, allergens AllergenLister, cfg Config) (*Pipeline, error) {
	if cfg.Owner == "" {
		return nil, errors.New("pipeline owner is required")
	}
	if cfg.Analyzer == nil || cfg.Logs == nil {
		return nil, errors.New("pipeline needs an analyzer and a meal logger")
	}
	list, err := allergens.ListAllergens(ctx, cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allergens: %w", err)
	}

	p := &Pipeline{
		owner:     cfg.Owner,
		analyzer:  cfg.Analyzer,
		logs:      cfg.Logs,
		cache:     cfg.Cache,
		archive:   cfg.Archive,
		log:       cfg.Logger,
		now:       cfg.Now,
		allergens: meal.AllergenNames(list),
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Allergens returns the allergen names the pipeline checks against.
func (p *Pipeline) Allergens() []string {
	out := make([]string, len(p.allergens))
	copy(out, p.allergens)
	return out
}

// Busy reports whether a scan is running.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Last returns the most recent finished scan, or nil.
func (p *Pipeline) Last() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run performs one scan attempt from Idle. It returns ErrScanInProgress when
// another scan is running; every other outcome, including failures, is
// reported through the Result.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer p.busy.Store(false)

	r := p.run(ctx, src)

	p.mu.Lock()
	p.last = r
	p.mu.Unlock()
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, src Source) *Result {
	r := &Result{ID: uuid.NewString(), State: Idle, Transitions: []State{Idle}, Conflicts: []string{}}
	log := p.log.WithFields(logrus.Fields{"scan_id": r.ID, "email": p.owner})

	r.move(Capturing)
	img, err := src.Capture(ctx)
	if err != nil {
		log.WithError(err).Warn("capture failed")
		return r.fail(err, "Could not read the image. Please upload a JPEG or PNG photo.")
	}
	r.ImageHash = meal.ImageHash(img.Data)
	log = log.WithField("image_hash", r.ImageHash)

	r.move(Submitted)
	analysis, cached, err := p.analyze(ctx, img, r.ImageHash, log)
	r.Cached = cached
	if err != nil {
		log.WithError(err).Warn("analysis failed")
		return r.fail(err, failureMessage(err))
	}
	if err := ctx.Err(); err != nil {
		log.WithError(err).Info("scan abandoned before the result arrived")
		return r.fail(err, "The scan was cancelled.")
	}

	analysis.ImageHash = r.ImageHash
	r.move(Parsed)
	r.Analysis = analysis

	r.Conflicts = meal.FindConflicts(analysis.Ingredients, p.allergens)
	r.move(AllergenChecked)
	if len(r.Conflicts) > 0 {
		r.Warning = "Warning: this meal contains your allergens: " + strings.Join(r.Conflicts, ", ")
	}

	if p.archive != nil {
		path, err := p.archive.Save(ctx, r.ImageHash, img)
		if err != nil {
			log.WithError(err).Warn("failed to archive image")
		}
		r.ImagePath = path
	}

	saved, err := p.logs.CreateMealLog(ctx, analysis.Entry(p.owner, p.now()))
	if err != nil {
		log.WithError(err).Error("failed to save meal log")
		r.SaveErr = err
		r.Message = "Analysis complete, but the meal could not be saved. Please try again."
		return r
	}
	r.Entry = saved
	r.move(Persisted)
	r.Message = "Meal logged."
	log.WithFields(logrus.Fields{"dish": analysis.DishName, "calories": analysis.Calories, "conflicts": len(r.Conflicts)}).Info("meal logged")
	return r
}

// analyze consults the cache before the analyzer and records fresh verdicts.
// Cache failures are logged and otherwise ignored.
func (p *Pipeline) analyze(ctx context.Context, img meal.Image, hash string, log logrus.FieldLogger) (*meal.Analysis, bool, error) {
	if p.cache != nil {
		if reason, err := p.cache.GetRejection(ctx, hash); err != nil {
			log.WithError(err).Warn("failed to read rejection cache")
		} else if reason != "" {
			return nil, true, fmt.Errorf("%w: %s", meal.ErrNotFood, reason)
		}
		if a, err := p.cache.GetAnalysisByImageHash(ctx, hash); err != nil {
			log.WithError(err).Warn("failed to read analysis cache")
		} else if a != nil {
			if err := a.Validate(); err == nil {
				return a, true, nil
			}
		}
	}

	a, err := p.analyzer.AnalyzeMeal(ctx, img)
	if err == nil {
		err = a.Validate()
	}
	if err != nil {
		if p.cache != nil && errors.Is(err, meal.ErrNotFood) {
			if cerr := p.cache.SaveRejection(ctx, hash, "Not a food image"); cerr != nil {
				log.WithError(cerr).Warn("failed to cache rejection")
			}
		}
		return nil, false, err
	}

	if p.cache != nil {
		a.ImageHash = hash
		if cerr := p.cache.SaveAnalysis(ctx, a); cerr != nil {
			log.WithError(cerr).Warn("failed to cache analysis")
		}
	}
	return a, false, nil
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, meal.ErrNotFood):
		return "This doesn't look like food. Please try another photo."
	case errors.Is(err, meal.ErrMalformedAnalysis), errors.Is(err, meal.ErrInvalidAnalysis):
		return "The analysis could not be understood. Please try again with a clearer photo."
	case errors.Is(err, context.DeadlineExceeded):
		return "The analysis took too long. Please try again."
	case errors.Is(err, context.Canceled):
		return "The scan was cancelled."
	default:
		return "The image could not be analyzed. Please try again later."
	}
}
