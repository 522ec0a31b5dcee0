package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/examgen/internal/archive"
	"github.com/pavelanni/examgen/internal/latex"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/render"
	"github.com/pavelanni/examgen/internal/store"
)

// MaxVariations caps the number of variations per request.
const MaxVariations = 100

var validate = validator.New()

// Store is the persistence the generator needs.
type Store interface {
	QuestionSource
	OptionSource
	SubjectName(ctx context.Context, id int64) (string, error)
	CountQuestions(ctx context.Context, topicID int64) (int, error)
	CreateExamConfig(ctx context.Context, cfg model.ExamConfig) (int64, error)
	GetExamConfig(ctx context.Context, id int64) (model.ExamConfig, error)
	CreateExam(ctx context.Context, configID int64, v model.Variant) (int64, error)
}

// Compiler turns rendered bodies into documents.
type Compiler interface {
	CheckToolchain() error
	Compile(ctx context.Context, job latex.Job) (*model.Document, error)
}

// Renderer produces the exam and key bodies of a variant.
type Renderer interface {
	Render(ctx context.Context, v model.Variant, meta render.Meta) (render.Bodies, error)
}

// Options tunes a Generator.
type Options struct {
	// Parallelism is the number of variations built at once. Values below
	// one mean sequential.
	Parallelism int
	// Seed fixes the randomness of every run: the same seed, bank and config
	// give the same questions and option order. Zero draws a fresh seed per
	// run and lets the store pick questions.
	Seed uint64
}

// State is the lifecycle position of one generation run.
type State int

const (
	StateInit State = iota
	StateConfigPersisted
	StateGeneratingVariant
	StatePackaged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConfigPersisted:
		return "CONFIG_PERSISTED"
	case StateGeneratingVariant:
		return "GENERATING_VARIANT"
	case StatePackaged:
		return "PACKAGED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of a successful run.
type Result struct {
	ConfigID int64
	RunID    string
	Archive  []byte
	Produced []int
	Failed   []int
}

// Generator drives generation requests end to end.
type Generator struct {
	store     Store
	compiler  Compiler
	renderer  Renderer
	assembler *Assembler
	opts      Options
}

// NewGenerator creates a Generator. Randomized sampling is pushed down to
// the store when it implements RandomSource and no seed is fixed.
func NewGenerator(st Store, compiler Compiler, renderer Renderer, opts Options) *Generator {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	sampler := NewSampler(st)
	sampler.Reproducible = opts.Seed != 0
	return &Generator{
		store:     st,
		compiler:  compiler,
		renderer:  renderer,
		assembler: NewAssembler(sampler, st),
		opts:      opts,
	}
}

// Generate validates req, persists its config and builds the archive.
func (g *Generator) Generate(ctx context.Context, req model.GenerationRequest) (*Result, error) {
	const op = "generate"

	if req.NumVariations == 0 {
		req.NumVariations = 1
	}
	if err := validateRequest(req); err != nil {
		return nil, newError(KindConfiguration, op, err)
	}
	if err := g.compiler.CheckToolchain(); err != nil {
		return nil, newError(KindConfiguration, op, err)
	}

	subject, err := g.store.SubjectName(ctx, req.SubjectID)
	if err != nil {
		return nil, storeError(op, err)
	}

	cfg := req.ExamConfig()
	cfg.ID, err = g.store.CreateExamConfig(ctx, cfg)
	if err != nil {
		return nil, newError(KindPersistence, op, err)
	}

	return g.run(ctx, op, cfg, subject, req.NumVariations)
}

// Regenerate builds n new variations from an existing config. It never
// writes config rows.
func (g *Generator) Regenerate(ctx context.Context, configID int64, n int) (*Result, error) {
	const op = "regenerate"

	if n == 0 {
		n = 1
	}
	if n < 1 || n > MaxVariations {
		return nil, newError(KindConfiguration, op,
			fmt.Errorf("variations must be between 1 and %d, got %d", MaxVariations, n))
	}
	if err := g.compiler.CheckToolchain(); err != nil {
		return nil, newError(KindConfiguration, op, err)
	}

	cfg, err := g.store.GetExamConfig(ctx, configID)
	if err != nil {
		return nil, storeError(op, err)
	}
	subject, err := g.store.SubjectName(ctx, cfg.SubjectID)
	if err != nil {
		return nil, storeError(op, err)
	}

	return g.run(ctx, op, cfg, subject, n)
}

type runState struct {
	log   *slog.Logger
	state State
}

func (r *runState) transition(to State, args ...any) {
	r.log.Info("generation state", append([]any{"from", r.state, "to", to}, args...)...)
	r.state = to
}

func (g *Generator) run(ctx context.Context, op string, cfg model.ExamConfig, subject string, n int) (*Result, error) {
	runID := uuid.NewString()
	rs := &runState{
		log:   slog.With("run_id", runID, "config_id", cfg.ID),
		state: StateInit,
	}
	rs.transition(StateConfigPersisted, "variations", n)

	fail := func(kind Kind, err error) (*Result, error) {
		rs.transition(StateFailed, "kind", kind, "error", err)
		return nil, newError(kind, op, err)
	}

	topics, err := g.realizedTopics(ctx, rs.log, cfg.Topics)
	if err != nil {
		return fail(KindPersistence, err)
	}
	var total int
	for _, tc := range topics {
		total += tc.NumQuestions
	}
	if total == 0 {
		return fail(KindConfiguration, errors.New("the requested topics have no questions available"))
	}
	points := Normalize(topics)

	seed := g.opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	var (
		docs   = make([][2]*model.Document, n)
		mu     sync.Mutex
		failed []int
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Parallelism)

	for i := range n {
		variation := i + 1
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			mu.Lock()
			rs.transition(StateGeneratingVariant, "variation", variation)
			mu.Unlock()

			rng := rand.New(rand.NewPCG(seed, uint64(variation)))
			v, err := g.assembler.Assemble(egCtx, rng, variation, topics, points)
			if err != nil {
				return newError(KindPersistence, op, fmt.Errorf("assemble variation %d: %w", variation, err))
			}

			exam, key, err := g.documents(egCtx, v, render.Meta{
				Subject:   subject,
				Fraction:  cfg.Fraction,
				Variation: variation,
			})
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				rs.log.Warn("dropping variation", "variation", variation, "error", err)
				mu.Lock()
				failed = append(failed, variation)
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if _, err := g.store.CreateExam(egCtx, cfg.ID, v); err != nil {
				return newError(KindPersistence, op, fmt.Errorf("save variation %d: %w", variation, err))
			}
			docs[i] = [2]*model.Document{exam, key}
			return nil
		})
	}

	err = eg.Wait()
	if ctx.Err() != nil {
		return fail(KindCanceled, ctx.Err())
	}
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			rs.transition(StateFailed, "kind", e.Kind, "error", e.Err)
			return nil, e
		}
		return fail(KindPersistence, err)
	}

	w := archive.NewWriter()
	var produced []int
	for i, pair := range docs {
		if pair[0] == nil {
			continue
		}
		for _, doc := range pair {
			if err := w.Add(doc); err != nil {
				return fail(KindPipeline, err)
			}
		}
		produced = append(produced, i+1)
	}
	if len(produced) == 0 {
		return fail(KindPipeline, fmt.Errorf("none of %d variations compiled; check the LaTeX toolchain", n))
	}
	data, err := w.Close()
	if err != nil {
		return fail(KindPipeline, err)
	}

	sort.Ints(failed)
	rs.transition(StatePackaged, "produced", len(produced), "failed", len(failed), "bytes", len(data))
	return &Result{
		ConfigID: cfg.ID,
		RunID:    runID,
		Archive:  data,
		Produced: produced,
		Failed:   failed,
	}, nil
}

// realizedTopics clamps every requested count to what the bank holds so
// point values match the questions that will actually appear.
func (g *Generator) realizedTopics(ctx context.Context, log *slog.Logger, topics []model.TopicConfig) ([]model.TopicConfig, error) {
	out := make([]model.TopicConfig, len(topics))
	for i, tc := range topics {
		available, err := g.store.CountQuestions(ctx, tc.TopicID)
		if err != nil {
			return nil, fmt.Errorf("count questions of topic %d: %w", tc.TopicID, err)
		}
		if available < tc.NumQuestions {
			log.Warn("topic has fewer questions than requested",
				"topic_id", tc.TopicID, "requested", tc.NumQuestions, "available", available)
			tc.NumQuestions = available
		}
		out[i] = tc
	}
	return out, nil
}

// documents renders and compiles both documents of a variant. Either
// failing drops the variant.
func (g *Generator) documents(ctx context.Context, v model.Variant, meta render.Meta) (*model.Document, *model.Document, error) {
	bodies, err := g.renderer.Render(ctx, v, meta)
	if err != nil {
		return nil, nil, err
	}
	exam, err := g.compiler.Compile(ctx, latex.Job{
		Kind:      model.KindExam,
		Variation: meta.Variation,
		Subject:   meta.Subject,
		Body:      bodies.Exam,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compile exam: %w", err)
	}
	key, err := g.compiler.Compile(ctx, latex.Job{
		Kind:      model.KindAnswerKey,
		Variation: meta.Variation,
		Subject:   meta.Subject,
		Body:      bodies.Key,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compile answer key: %w", err)
	}
	return exam, key, nil
}

func validateRequest(req model.GenerationRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(req.Topics))
	for _, t := range req.Topics {
		if seen[t.TopicID] {
			return fmt.Errorf("topic %d listed more than once", t.TopicID)
		}
		seen[t.TopicID] = true
	}
	return nil
}

func storeError(op string, err error) *Error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, op, err)
	}
	return newError(KindPersistence, op, err)
}
