package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sdr-enrich/internal/classify"
	"github.com/sells-group/sdr-enrich/internal/match"
	"github.com/sells-group/sdr-enrich/internal/model"
)

// company runs the directory lookup and company research side by side. Both
// branches run to completion so the research outcome is always recorded;
// either failing fails the pipeline.
func (o *Orchestrator) company(ctx context.Context, lead *model.Lead) (*outcome, error) {
	ctx, span := tracer.Start(ctx, "enrich.company")
	defer span.End()

	domain := classify.Domain(lead.Email)
	website := ""
	if domain != "" {
		website = "https://" + domain
	}

	var (
		dirRes, resRes *SourceResult
		dirErr, resErr error
		g              errgroup.Group
	)
	g.Go(func() error {
		dirRes, dirErr = o.src.Directory.Company(ctx, lead.Email, domain)
		return nil
	})
	g.Go(func() error {
		if website == "" {
			resErr = eris.New("enrich: email has no domain to research")
			return nil
		}
		resRes, resErr = o.src.Research.Research(ctx, website)
		return nil
	})
	_ = g.Wait()

	if resErr != nil {
		o.appendActivity(ctx, lead, model.ActivityCompanyResearchFailed,
			"Company research failed for "+domain,
			map[string]any{"website": website, "error": resErr.Error()})
	} else {
		meta := map[string]any{"website": website}
		if len(resRes.Errors) > 0 {
			meta["failedEndpoints"] = resRes.Errors
		}
		o.appendActivity(ctx, lead, model.ActivityCompanyResearchSuccess,
			"Company research completed for "+domain, meta)
	}

	if dirErr != nil {
		return nil, dirErr
	}
	if resErr != nil {
		return nil, resErr
	}
	return &outcome{merged: Merge(CompanyPrecedence, *dirRes, *resRes)}, nil
}

// personal resolves a consumer-mailbox lead to a LinkedIn identity.
func (o *Orchestrator) personal(ctx context.Context, lead *model.Lead) (*outcome, error) {
	ctx, span := tracer.Start(ctx, "enrich.personal")
	defer span.End()
	log := zap.L().With(zap.String("lead_id", lead.ID))

	query := lead.FullName()
	if query == "" {
		query = classify.LocalPart(lead.Email)
	}

	profileURL, err := o.src.Finder.FindProfileURL(ctx, query)
	switch {
	case err != nil:
		log.Info("enrich: dork search failed, falling back to people search", zap.Error(err))
	case profileURL == "":
		log.Info("enrich: dork search found no profile, falling back to people search")
	default:
		return o.profileFound(ctx, lead, profileURL)
	}
	return o.matchByName(ctx, lead, query)
}

// profileFound fetches the directory record and scrapes the discovered profile.
func (o *Orchestrator) profileFound(ctx context.Context, lead *model.Lead, profileURL string) (*outcome, error) {
	var dirRes, scraped *SourceResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dirRes, err = o.src.Directory.PersonByEmail(gctx, lead.Email)
		return err
	})
	g.Go(func() error {
		var err error
		scraped, err = o.src.Scraper.Scrape(gctx, profileURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &outcome{merged: Merge(ProfilePrecedence, *dirRes, *scraped)}, nil
}

// matchByName searches both people indexes by name and keeps the first
// cross-source pair the matcher accepts.
func (o *Orchestrator) matchByName(ctx context.Context, lead *model.Lead, name string) (*outcome, error) {
	var dirHits, altHits []SourceResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dirHits, err = o.src.Directory.PeopleByName(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		altHits, err = o.src.People.FindPeople(gctx, name, lead.Email)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dirCands := candidates(dirHits)
	altCands := candidates(altHits)
	m, ok := o.matcher.Best(dirCands, altCands)
	if !ok {
		return nil, ErrNoProfileMatch
	}
	dirRes := dirHits[indexOf(dirCands, m.A)]
	altRes := altHits[indexOf(altCands, m.B)]

	results := []SourceResult{dirRes, altRes}
	profileURL := firstNonEmpty(m.A.LinkedInURL, m.B.LinkedInURL)
	if profileURL != "" {
		scraped, err := o.src.Scraper.Scrape(ctx, profileURL)
		if err != nil {
			return nil, err
		}
		results = append(results, *scraped)
	}

	return &outcome{
		merged: Merge(MatchedPrecedence, results...),
		match: &model.MatchSummary{
			Score:       m.Score,
			Name:        m.A.Name,
			Company:     m.A.Organization,
			Title:       m.A.Title,
			LinkedInURL: profileURL,
		},
	}, nil
}

func candidates(results []SourceResult) []match.Candidate {
	out := make([]match.Candidate, len(results))
	for i, r := range results {
		out[i] = match.Candidate{
			Name:         strings.TrimSpace(r.Fields.FirstName + " " + r.Fields.LastName),
			Organization: r.Fields.Company,
			Title:        r.Fields.Title,
			LinkedInURL:  r.Fields.LinkedInURL,
			Source:       r.Source,
		}
	}
	return out
}

func indexOf(cands []match.Candidate, c match.Candidate) int {
	for i := range cands {
		if cands[i] == c {
			return i
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
