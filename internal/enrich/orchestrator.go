// Package enrich turns a signup email into an enriched lead by fanning out to
// third-party sources and reconciling what they return.
package enrich

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/classify"
	"github.com/sells-group/sdr-enrich/internal/match"
	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
)

var tracer = otel.Tracer("github.com/sells-group/sdr-enrich/internal/enrich")

// ErrNoProfileMatch is returned when the personal pipeline cannot tie the
// lead to a single profile.
var ErrNoProfileMatch = eris.New("could not find matching profile")

// Store is the persistence the orchestrator needs.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	SetEmailType(ctx context.Context, id string, t model.EmailType) error
	UpdateLeadEnrichment(ctx context.Context, id string, upd model.LeadUpdate) error
	AppendActivity(ctx context.Context, a *model.Activity) error
}

// Approver requests human review of an outreach draft for an enriched lead.
type Approver interface {
	Request(ctx context.Context, lead *model.Lead) error
}

// Sources are the third-party lookups the pipelines call.
type Sources struct {
	Directory PersonDirectory
	Research  CompanyResearch
	Finder    ProfileFinder
	People    PeopleSearch
	Scraper   ProfileScraper
}

// Orchestrator runs the company or personal pipeline for a lead.
type Orchestrator struct {
	store    Store
	src      Sources
	matcher  *match.Matcher
	approver Approver
	metrics  *monitoring.Metrics
	now      func() time.Time

	// legacyFailedAsEnriched records terminal failures as ENRICHED.
	legacyFailedAsEnriched bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMatcher replaces the default profile matcher.
func WithMatcher(m *match.Matcher) Option {
	return func(o *Orchestrator) { o.matcher = m }
}

// WithApprover asks for a draft approval after each successful enrichment.
func WithApprover(a Approver) Option {
	return func(o *Orchestrator) { o.approver = a }
}

// WithMetrics records enrichment outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLegacyFailedStatus marks failed leads ENRICHED instead of FAILED.
func WithLegacyFailedStatus(enabled bool) Option {
	return func(o *Orchestrator) { o.legacyFailedAsEnriched = enabled }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(st Store, src Sources, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   st,
		src:     src,
		matcher: match.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enrich loads a lead and enriches it.
func (o *Orchestrator) Enrich(ctx context.Context, leadID string) error {
	lead, err := o.store.GetLead(ctx, leadID)
	if err != nil {
		return eris.Wrapf(err, "enrich: load lead %s", leadID)
	}
	return o.EnrichLead(ctx, lead)
}

// outcome is what a pipeline produced.
type outcome struct {
	merged Merged
	match  *model.MatchSummary
}

// EnrichLead runs the pipeline matching the lead's email type and persists
// the result. Failures are recorded on the lead and in the activity log,
// then returned so the caller can count the attempt. Leads a reviewer has
// already decided on are left alone.
func (o *Orchestrator) EnrichLead(ctx context.Context, lead *model.Lead) (err error) {
	log := zap.L().With(zap.String("lead_id", lead.ID))
	if lead.Status.Decided() {
		log.Info("enrich: skipping decided lead", zap.String("status", string(lead.Status)))
		return nil
	}

	ctx, span := tracer.Start(ctx, "enrich.lead")
	span.SetAttributes(attribute.String("lead_id", lead.ID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if lead.EmailType == "" {
		lead.EmailType = classify.Classify(lead.Email)
		if err := o.store.SetEmailType(ctx, lead.ID, lead.EmailType); err != nil {
			return eris.Wrap(err, "enrich: persist email type")
		}
	}

	pipeline := model.PipelineCompany
	if lead.EmailType == model.EmailTypePersonal {
		pipeline = model.PipelinePersonal
	}
	span.SetAttributes(attribute.String("pipeline", string(pipeline)))
	log = log.With(zap.String("pipeline", string(pipeline)))
	log.Info("enrich: starting")

	var out *outcome
	var runErr error
	if pipeline == model.PipelinePersonal {
		out, runErr = o.personal(ctx, lead)
	} else {
		out, runErr = o.company(ctx, lead)
	}

	if runErr != nil {
		o.metrics.ObserveEnrichment(string(pipeline), "failed")
		log.Warn("enrich: failed", zap.Error(runErr))
		if recErr := o.recordFailure(ctx, lead, pipeline, runErr); recErr != nil {
			log.Error("enrich: record failure", zap.Error(recErr))
		}
		return eris.Wrapf(runErr, "enrich: lead %s", lead.ID)
	}

	if err := o.recordSuccess(ctx, lead, pipeline, out); err != nil {
		o.metrics.ObserveEnrichment(string(pipeline), "failed")
		return err
	}
	o.metrics.ObserveEnrichment(string(pipeline), "success")
	log.Info("enrich: complete", zap.Strings("sources", out.merged.Sources))

	if o.approver != nil {
		if err := o.approver.Request(ctx, lead); err != nil {
			log.Warn("enrich: approval request failed", zap.Error(err))
			o.appendActivity(ctx, lead, model.ActivityApprovalFailed,
				"Could not request approval for outreach draft",
				map[string]any{"error": err.Error()})
		}
	}
	return nil
}

func (o *Orchestrator) recordSuccess(ctx context.Context, lead *model.Lead, pipeline model.Pipeline, out *outcome) error {
	data := model.EnrichmentData{
		Pipeline:   pipeline,
		Sources:    out.merged.Sources,
		Fields:     out.merged.Fields,
		Provenance: out.merged.Provenance,
		Extra:      out.merged.Extra,
		Raw:        out.merged.Raw,
		Match:      out.match,
		EnrichedAt: o.now().UTC(),
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "enrich: marshal enrichment data")
	}
	f := out.merged.Fields
	upd := model.LeadUpdate{
		Company:        f.Company,
		Title:          f.Title,
		Industry:       f.Industry,
		CompanySize:    f.CompanySize,
		Location:       f.Location,
		LinkedInURL:    f.LinkedInURL,
		EnrichmentData: raw,
		Status:         model.LeadStatusEnriched,
	}
	if err := o.store.UpdateLeadEnrichment(ctx, lead.ID, upd); err != nil {
		return eris.Wrap(err, "enrich: update lead")
	}
	applyUpdate(lead, upd)

	o.appendActivity(ctx, lead, model.ActivityEnrichmentSuccess,
		"Lead enriched via "+string(pipeline)+" pipeline",
		map[string]any{"foundData": f.Found(), "sources": out.merged.Sources})
	return nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, lead *model.Lead, pipeline model.Pipeline, cause error) error {
	status := model.LeadStatusFailed
	if o.legacyFailedAsEnriched {
		status = model.LeadStatusEnriched
	}
	data := model.EnrichmentData{
		Pipeline:   pipeline,
		Sources:    []string{},
		Error:      cause.Error(),
		EnrichedAt: o.now().UTC(),
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "enrich: marshal failure data")
	}
	o.appendActivity(ctx, lead, model.ActivityEnrichmentFailed,
		"Lead enrichment failed",
		map[string]any{"error": cause.Error(), "foundData": model.ProfileFields{}.Found()})

	upd := model.LeadUpdate{EnrichmentData: raw, Status: status}
	if err := o.store.UpdateLeadEnrichment(ctx, lead.ID, upd); err != nil {
		return eris.Wrap(err, "enrich: update failed lead")
	}
	applyUpdate(lead, upd)
	return nil
}

// appendActivity logs instead of failing; the audit trail is best effort.
func (o *Orchestrator) appendActivity(ctx context.Context, lead *model.Lead, typ model.ActivityType, desc string, meta any) {
	a := model.NewActivity(lead, typ, desc, meta)
	if err := o.store.AppendActivity(ctx, &a); err != nil {
		zap.L().Error("enrich: append activity",
			zap.String("lead_id", lead.ID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

func applyUpdate(lead *model.Lead, upd model.LeadUpdate) {
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&lead.Company, upd.Company},
		{&lead.Title, upd.Title},
		{&lead.Industry, upd.Industry},
		{&lead.CompanySize, upd.CompanySize},
		{&lead.Location, upd.Location},
		{&lead.LinkedInURL, upd.LinkedInURL},
	} {
		if f.v != "" {
			*f.dst = f.v
		}
	}
	if len(upd.EnrichmentData) > 0 {
		lead.EnrichmentData = upd.EnrichmentData
	}
	lead.Status = upd.Status
}
