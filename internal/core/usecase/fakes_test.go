package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

type transitionCall struct {
	jobID    string
	from, to domain.JobStatus
	errMsg   string
}

type jobRepoFake struct {
	mu          sync.Mutex
	jobs        map[string]*domain.ExtractionJob
	results     map[string]*domain.CallSheetExtraction
	transitions []transitionCall
	createErr   error
	completeErr error
	stale       map[domain.JobStatus][]domain.ExtractionJob
	// honorContext makes writes fail once their context is done, like a
	// database driver would.
	honorContext bool
}

func newJobRepoFake() *jobRepoFake {
	return &jobRepoFake{
		jobs:    map[string]*domain.ExtractionJob{},
		results: map[string]*domain.CallSheetExtraction{},
		stale:   map[domain.JobStatus][]domain.ExtractionJob{},
	}
}

func (f *jobRepoFake) Create(_ context.Context, job *domain.ExtractionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyJob := *job
	f.jobs[job.ID] = &copyJob
	return nil
}

func (f *jobRepoFake) GetByID(_ context.Context, jobID string) (*domain.ExtractionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", errors.New(jobID))
	}
	copyJob := *job
	return &copyJob, nil
}

func (f *jobRepoFake) GetForUser(ctx context.Context, userID, jobID string) (*domain.ExtractionJob, error) {
	job, err := f.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", errors.New(jobID))
	}
	return job, nil
}

func (f *jobRepoFake) Transition(ctx context.Context, jobID string, from, to domain.JobStatus, errMessage string) error {
	if f.honorContext && ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, transitionCall{jobID: jobID, from: from, to: to, errMsg: errMessage})
	job, ok := f.jobs[jobID]
	if !ok || job.Status != from || !domain.CanTransition(from, to) {
		return domain.WrapError(domain.ErrConflict, "transition job", errors.New(jobID))
	}
	job.Status = to
	job.Error = errMessage
	return nil
}

func (f *jobRepoFake) Complete(ctx context.Context, jobID string, extraction domain.CallSheetExtraction) error {
	if f.honorContext && ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	job, ok := f.jobs[jobID]
	if !ok || job.Status != domain.JobProcessing {
		return domain.WrapError(domain.ErrConflict, "complete job", errors.New(jobID))
	}
	job.Status = domain.JobDone
	job.Confidence = extraction.Result.Confidence
	copyExtraction := extraction
	f.results[jobID] = &copyExtraction
	return nil
}

func (f *jobRepoFake) GetResult(_ context.Context, jobID string) (*domain.CallSheetExtraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.results[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get result", errors.New(jobID))
	}
	return res, nil
}

func (f *jobRepoFake) ListStale(_ context.Context, status domain.JobStatus, _ time.Time) ([]domain.ExtractionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale[status], nil
}

func (f *jobRepoFake) put(job domain.ExtractionJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = &job
}

type storageFake struct {
	objects map[string][]byte
	infos   map[string]ports.ObjectInfo
	saveErr error
	saved   []string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}, infos: map[string]ports.ObjectInfo{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = b
	f.saved = append(f.saved, key)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open object", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *storageFake) Stat(_ context.Context, key string) (ports.ObjectInfo, error) {
	if info, ok := f.infos[key]; ok {
		return info, nil
	}
	b, ok := f.objects[key]
	if !ok {
		return ports.ObjectInfo{}, domain.WrapError(domain.ErrNotFound, "stat object", errors.New(key))
	}
	return ports.ObjectInfo{Key: key, Size: int64(len(b)), MimeType: domain.MimeJPEG}, nil
}

type queueFake struct {
	published  []string
	publishErr error
}

func (f *queueFake) PublishJobQueued(_ context.Context, jobID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *queueFake) SubscribeJobQueued(context.Context, func(context.Context, string) error) error {
	return nil
}

type quotaFake struct {
	status   domain.QuotaStatus
	checkErr error
	checks   int
	records  []string
}

func allowQuota() *quotaFake {
	return &quotaFake{status: domain.QuotaStatus{Allowed: true, Plan: domain.PlanFree, Limit: 5, Remaining: 5}}
}

func (f *quotaFake) Check(context.Context, string) (domain.QuotaStatus, error) {
	f.checks++
	return f.status, f.checkErr
}

func (f *quotaFake) Record(_ context.Context, _ string, operation string) error {
	f.records = append(f.records, operation)
	return nil
}

type aiFake struct {
	raw       string
	err       error
	calls     int
	artifacts []ports.Artifact
	// hang blocks calls until the caller's context is done.
	hang bool
}

func (f *aiFake) ExtractExpense(_ context.Context, _ domain.ExpenseType, artifact ports.Artifact) (string, error) {
	f.calls++
	f.artifacts = append(f.artifacts, artifact)
	return f.raw, f.err
}

func (f *aiFake) ExtractCallSheet(ctx context.Context, artifact ports.Artifact) (string, error) {
	f.calls++
	f.artifacts = append(f.artifacts, artifact)
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.raw, f.err
}

type textLayerFake struct {
	text string
	err  error
}

func (f *textLayerFake) ExtractText(context.Context, string, []byte) (string, error) {
	return f.text, f.err
}

type documentRepoFake struct {
	refs []domain.DocumentRef
}

func (f *documentRepoFake) CreateRef(_ context.Context, ref *domain.DocumentRef) error {
	f.refs = append(f.refs, *ref)
	return nil
}

type profileRepoFake struct {
	profiles map[string]domain.UserProfile
}

func (f *profileRepoFake) GetProfile(_ context.Context, userID string) (domain.UserProfile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.WrapError(domain.ErrNotFound, "get profile", errors.New(userID))
	}
	return p, nil
}

type usageRepoFake struct {
	events []time.Time
	since  time.Time
}

func (f *usageRepoFake) CountSince(_ context.Context, _ string, since time.Time) (int, error) {
	f.since = since
	n := 0
	for _, at := range f.events {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *usageRepoFake) Record(_ context.Context, _ string, _ string, at time.Time) error {
	f.events = append(f.events, at)
	return nil
}

type tripRepoFake struct {
	projects []domain.Project
	trips    []domain.Trip
}

func (f *tripRepoFake) FindProjectByName(_ context.Context, userID, name string) (*domain.Project, error) {
	for _, p := range f.projects {
		if p.UserID == userID && strings.EqualFold(p.Name, name) {
			copyProject := p
			return &copyProject, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find project", errors.New(name))
}

func (f *tripRepoFake) CreateProject(_ context.Context, p *domain.Project) error {
	f.projects = append(f.projects, *p)
	return nil
}

func (f *tripRepoFake) CreateTrip(_ context.Context, t *domain.Trip) error {
	f.trips = append(f.trips, *t)
	return nil
}

type geocoderFake struct {
	mu      sync.Mutex
	results map[string]string
	delays  map[string]time.Duration
	panics  map[string]bool
	queries []string
	regions []string
}

func (f *geocoderFake) Geocode(_ context.Context, query, region string) (domain.GeocodeResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.regions = append(f.regions, region)
	delay := f.delays[query]
	shouldPanic := f.panics[query]
	addr, ok := f.results[query]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if shouldPanic {
		panic("geocoder exploded")
	}
	if !ok {
		return domain.GeocodeResult{}, domain.WrapError(domain.ErrNotFound, "geocode", errors.New(query))
	}
	return domain.GeocodeResult{FormattedAddress: addr}, nil
}

func (f *geocoderFake) sortedQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.queries...)
	sort.Strings(out)
	return out
}

type routesFake struct {
	meters    float64
	err       error
	origin    string
	dest      string
	waypoints []string
}

func (f *routesFake) RouteMeters(_ context.Context, origin, destination string, waypoints []string) (float64, error) {
	f.origin, f.dest, f.waypoints = origin, destination, waypoints
	return f.meters, f.err
}

type observerFake struct {
	mu        sync.Mutex
	fallbacks map[string]int
	aiCalls   map[string]int
	rejected  int
}

func newObserverFake() *observerFake {
	return &observerFake{fallbacks: map[string]int{}, aiCalls: map[string]int{}}
}

func (o *observerFake) FallbackUsed(component string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks[component]++
}

func (o *observerFake) AICall(operation, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.aiCalls[operation+":"+outcome]++
}

func (o *observerFake) QuotaRejected(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}
