package ncitparser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giygas/bpc-regimens/interfaces"
	"github.com/giygas/bpc-regimens/logging"
	"github.com/giygas/bpc-regimens/metrics"
	"github.com/giygas/bpc-regimens/ncitparser/entities"
	"github.com/giygas/bpc-regimens/regimens"
	"github.com/google/uuid"
)

// Compile-time check to ensure CohortParser implements Parser interface
var _ interfaces.Parser = (*CohortParser)(nil)

// ErrDataDictionaryNotFound is returned when the cohort folder has no data
// dictionary file
var ErrDataDictionaryNotFound = errors.New("data dictionary not found")

// Options are the Synapse ids and selection settings of a run
type Options struct {
	PrissmmTableID     string
	GlobalResponseID   string
	RegimenFileID      string
	DataDictionaryName string
	TopRegimens        int
	SkipUnknown        bool
}

// CohortParser runs the whole pipeline for a cohort: locate and download the
// tables, build the drug mapping, select and abbreviate the top regimens
type CohortParser struct {
	service interfaces.TableService
	opts    Options
	now     func() time.Time
}

// NewCohortParser creates a CohortParser reading from service
func NewCohortParser(service interfaces.TableService, opts Options) *CohortParser {
	if opts.TopRegimens <= 0 {
		opts.TopRegimens = regimens.DefaultTopRegimens
	}
	if opts.DataDictionaryName == "" {
		opts.DataDictionaryName = "Data Dictionary non-PHI"
	}
	return &CohortParser{service: service, opts: opts, now: time.Now}
}

// ParseCohort implements the Parser interface
func (p *CohortParser) ParseCohort(ctx context.Context, cohort string) (entities.CohortResult, error) {
	start := time.Now()
	log := logging.Logger().With("cohort", cohort, "run_id", uuid.NewString())

	result, err := p.parseCohort(ctx, cohort, log)
	if err != nil {
		metrics.CohortRefreshTotal.WithLabelValues(cohort, "error").Inc()
		log.Error("Cohort failed", "error", err)
		return entities.CohortResult{}, fmt.Errorf("cohort %s: %w", cohort, err)
	}

	metrics.CohortRefreshTotal.WithLabelValues(cohort, "success").Inc()
	if len(result.UnknownLabels) > 0 {
		metrics.UnknownDrugLabels.WithLabelValues(cohort).Add(float64(len(result.UnknownLabels)))
		log.Warn("Regimens skipped for unknown drug labels", "labels", result.UnknownLabels)
	}
	log.Info("Cohort done",
		"mapped_labels", len(result.Mapping),
		"regimens", len(result.Abbreviations),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (p *CohortParser) parseCohort(ctx context.Context, cohort string, log *slog.Logger) (entities.CohortResult, error) {
	result, err := p.parseMapping(ctx, cohort, log)
	if err != nil {
		return entities.CohortResult{}, err
	}

	regimenPath, err := p.service.FetchLocalPath(ctx, p.opts.RegimenFileID)
	if err != nil {
		return entities.CohortResult{}, fmt.Errorf("fetching regimen table: %w", err)
	}
	table, err := regimens.LoadRegimenTable(regimenPath)
	if err != nil {
		return entities.CohortResult{}, err
	}
	selected, err := regimens.SelectTopRegimens(table, cohort, p.opts.TopRegimens)
	if err != nil {
		return entities.CohortResult{}, err
	}
	abbreviations, unknown, err := regimens.AbbreviateAll(selected, result.Mapping, p.opts.SkipUnknown)
	if err != nil {
		return entities.CohortResult{}, err
	}

	result.Abbreviations = abbreviations
	result.UnknownLabels = unknown
	result.RegimenTableID = p.opts.RegimenFileID
	return result, nil
}

// ParseMapping builds the drug mapping of a cohort without touching the
// regimen table
func (p *CohortParser) ParseMapping(ctx context.Context, cohort string) (entities.CohortResult, error) {
	log := logging.Logger().With("cohort", cohort, "run_id", uuid.NewString())

	result, err := p.parseMapping(ctx, cohort, log)
	if err != nil {
		log.Error("Cohort mapping failed", "error", err)
		return entities.CohortResult{}, fmt.Errorf("cohort %s: %w", cohort, err)
	}
	log.Info("Cohort mapping done", "mapped_labels", len(result.Mapping))
	return result, nil
}

func (p *CohortParser) parseMapping(ctx context.Context, cohort string, log *slog.Logger) (entities.CohortResult, error) {
	folderID, err := p.service.QueryCohortFolder(ctx, p.opts.PrissmmTableID, cohort)
	if err != nil {
		return entities.CohortResult{}, fmt.Errorf("finding cohort folder: %w", err)
	}

	dictionaryID, err := p.findDataDictionary(ctx, folderID)
	if err != nil {
		return entities.CohortResult{}, err
	}
	log.Info("Found data dictionary", "folder", folderID, "id", dictionaryID)

	dictionaryPath, err := p.service.FetchLocalPath(ctx, dictionaryID)
	if err != nil {
		return entities.CohortResult{}, fmt.Errorf("fetching data dictionary: %w", err)
	}
	globalPath, err := p.service.FetchLocalPath(ctx, p.opts.GlobalResponseID)
	if err != nil {
		return entities.CohortResult{}, fmt.Errorf("fetching global response set: %w", err)
	}

	dictionary, err := LoadDictionaryTable(dictionaryPath)
	if err != nil {
		return entities.CohortResult{}, err
	}
	global, err := LoadGlobalResponseSet(globalPath)
	if err != nil {
		return entities.CohortResult{}, err
	}

	mapping, report := BuildMapping(dictionary, global, FieldNames())

	return entities.CohortResult{
		Cohort:       cohort,
		Mapping:      mapping,
		Report:       report,
		DictionaryID: dictionaryID,
		GlobalID:     p.opts.GlobalResponseID,
		UpdatedAt:    p.now(),
	}, nil
}

func (p *CohortParser) findDataDictionary(ctx context.Context, folderID string) (string, error) {
	children, err := p.service.ListChildren(ctx, folderID)
	if err != nil {
		return "", fmt.Errorf("listing cohort folder %s: %w", folderID, err)
	}
	for _, child := range children {
		if child.Name == p.opts.DataDictionaryName {
			return child.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no %q in %s", ErrDataDictionaryNotFound, p.opts.DataDictionaryName, folderID)
}

// ParseAllCohorts implements the Parser interface. Cohorts run one after
// the other and the first failure stops the run.
func (p *CohortParser) ParseAllCohorts(ctx context.Context, cohorts []string) ([]entities.CohortResult, error) {
	results := make([]entities.CohortResult, 0, len(cohorts))
	for _, cohort := range cohorts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := p.ParseCohort(ctx, cohort)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
