package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/lealcafe/ventas_backend/sheets"
	"github.com/lealcafe/ventas_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Stage string

const (
	StageReceived    Stage = "RECEIVED"
	StageParsing     Stage = "PARSING"
	StageNormalizing Stage = "NORMALIZING"
	StagePersisting  Stage = "PERSISTING"
	StageCompleted   Stage = "COMPLETED"
	StageFailed      Stage = "FAILED"
)

type DimensionStatus string

const (
	DimensionCompleted DimensionStatus = "COMPLETED"
	DimensionFailed    DimensionStatus = "FAILED"
	DimensionNotFound  DimensionStatus = "NOT_FOUND"
	DimensionPreviewed DimensionStatus = "PREVIEWED"
)

const (
	previewRecords = 20
	// label of the grand total printed above the report sections
	reportedTotalLabel = "Ventas"
)

var (
	ingestionTracer = otel.Tracer("ventas-ingestion")
	crossCheckDelta = decimal.NewFromInt(1)
)

// Persister writes one dimension batch atomically.
type Persister interface {
	UpsertBatch(ctx context.Context, dim models.Dimension, period models.Period, createdBy string, records []models.SalesRecord) (models.UpsertCounts, error)
}

type (
	ArchiveFunc func(ctx context.Context, objectName string, filename string, data []byte) (string, error)
	PublishFunc func(ctx context.Context, msg config.SalesIngestedMessage) (string, error)
)

// SalesIngestion runs one uploaded workbook through the ingestion stages.
// Archive, Publish and Locker are optional.
type SalesIngestion struct {
	Periods   config.PeriodConfig
	Parser    *sheets.Parser
	Persister Persister
	Archive   ArchiveFunc
	Publish   PublishFunc
	Locker    PeriodLocker
	Logger    *logrus.Logger
}

type UploadRequest struct {
	UploadId  string
	Filename  string
	Data      []byte
	Form      models.PeriodForm
	CreatedBy string
}

type StageEvent struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
}

type Warning struct {
	Dimension models.Dimension `json:"dimension,omitempty"`
	Sheet     string           `json:"sheet,omitempty"`
	Row       int              `json:"row,omitempty"`
	Field     string           `json:"field,omitempty"`
	Value     string           `json:"value,omitempty"`
	Reason    string           `json:"reason"`
}

type ErrorInfo struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type DimensionResult struct {
	Dimension models.Dimension `json:"dimension"`
	Status    DimensionStatus  `json:"status"`
	Sheet     string           `json:"sheet,omitempty"`
	HeaderRow int              `json:"header_row,omitempty"`
	Rows      int              `json:"rows"`
	models.UpsertCounts
	Skipped int                  `json:"skipped"`
	Error   *ErrorInfo           `json:"error,omitempty"`
	Preview []models.SalesRecord `json:"preview,omitempty"`

	records []models.NormalizedRow
	raw     []sheets.RawRow
}

type UploadSummary struct {
	UploadId      string             `json:"upload_id"`
	CorrelationId string             `json:"correlation_id"`
	Filename      string             `json:"filename"`
	Period        *models.Period     `json:"period,omitempty"`
	State         Stage              `json:"state"`
	History       []StageEvent       `json:"history"`
	Dimensions    []*DimensionResult `json:"dimensions"`
	Warnings      []Warning          `json:"warnings"`
	ReportedTotal *decimal.Decimal   `json:"reported_total,omitempty"`
	HourTotal     decimal.Decimal    `json:"hour_total"`
	ArchiveUrl    string             `json:"archive_url,omitempty"`
	Preview       bool               `json:"preview,omitempty"`
	Error         *ErrorInfo         `json:"error,omitempty"`
}

// Partial reports a completed upload in which some dimensions failed.
func (s *UploadSummary) Partial() bool {
	if s.State != StageCompleted {
		return false
	}
	for _, d := range s.Dimensions {
		if d.Status == DimensionFailed {
			return true
		}
	}
	return false
}

func (s *UploadSummary) enter(stage Stage) {
	s.State = stage
	s.History = append(s.History, StageEvent{Stage: stage, At: time.Now().UTC()})
}

func (s *UploadSummary) warn(w Warning) {
	s.Warnings = append(s.Warnings, w)
}

func (s *UploadSummary) located() []*DimensionResult {
	var out []*DimensionResult
	for _, d := range s.Dimensions {
		if d.Status != DimensionNotFound && d.Error == nil {
			out = append(out, d)
		}
	}
	return out
}

func errorInfo(err error) *ErrorInfo {
	info := &ErrorInfo{Type: models.ErrorType(err), Message: err.Error()}
	var (
		parseErr  *models.ParseError
		configErr *models.ConfigurationError
	)
	switch {
	case errors.As(err, &configErr):
		info.Details = configErr
	case errors.As(err, &parseErr):
		info.Details = parseErr
	}
	return info
}

// Run ingests the workbook. The summary is always returned; err is non-nil when the upload FAILED.
func (w *SalesIngestion) Run(ctx context.Context, req UploadRequest) (*UploadSummary, error) {
	return w.run(ctx, req, false)
}

// Preview parses and normalizes without writing anything.
func (w *SalesIngestion) Preview(ctx context.Context, req UploadRequest) (*UploadSummary, error) {
	return w.run(ctx, req, true)
}

func (w *SalesIngestion) logger() *logrus.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return config.GetLogger()
}

func (w *SalesIngestion) parser() *sheets.Parser {
	if w.Parser != nil {
		return w.Parser
	}
	return models.NewSalesParser()
}

func (w *SalesIngestion) run(ctx context.Context, req UploadRequest, preview bool) (*UploadSummary, error) {
	summary := &UploadSummary{
		UploadId: req.UploadId,
		Filename: req.Filename,
		Preview:  preview,
		Warnings: []Warning{},
	}
	if summary.UploadId == "" {
		summary.UploadId = uuid.NewString()
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	if cid == "" {
		cid = uuid.NewString()
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
	}
	summary.CorrelationId = cid
	ctx = utils.SetUploadIdInContext(ctx, summary.UploadId)

	ctx, span := ingestionTracer.Start(ctx, "ventas.upload", trace.WithAttributes(
		attribute.String("upload_id", summary.UploadId),
		attribute.String("filename", req.Filename),
		attribute.Bool("preview", preview),
	))
	defer span.End()

	log := w.logger().WithFields(logrus.Fields{
		"field":          "SalesIngestion",
		"upload_id":      summary.UploadId,
		"correlation_id": cid,
		"username":       req.CreatedBy,
	})

	fail := func(err error) (*UploadSummary, error) {
		summary.Error = errorInfo(err)
		summary.enter(StageFailed)
		span.SetStatus(codes.Error, err.Error())
		log.WithField("state", StageFailed).Warn("upload failed: " + err.Error())
		return summary, err
	}

	summary.enter(StageReceived)
	period, err := models.ResolvePeriod(w.Periods, req.Form)
	if err != nil {
		return fail(err)
	}
	summary.Period = &period
	span.SetAttributes(attribute.String("period", period.String()))
	log = log.WithField("period", period.String())

	if !preview && w.Locker != nil {
		release, err := w.Locker.Obtain(ctx, periodLockKey(period), periodLockTTL)
		if err != nil {
			log.Warn("proceeding without period lock: " + err.Error())
		} else {
			defer func() {
				if err := release(context.Background()); err != nil {
					log.Warn("failed to release period lock: " + err.Error())
				}
			}()
		}
	}

	summary.enter(StageParsing)
	wb, err := w.parseStage(ctx, req, summary)
	if err != nil {
		return fail(err)
	}
	defer wb.Close()

	summary.enter(StageNormalizing)
	w.normalizeStage(ctx, period, req.CreatedBy, summary)
	w.crossCheck(wb, summary)

	if preview {
		for _, d := range summary.located() {
			d.Status = DimensionPreviewed
			for i, r := range d.records {
				if i == previewRecords {
					break
				}
				d.Preview = append(d.Preview, r.Record)
			}
		}
		summary.enter(StageCompleted)
		return summary, nil
	}

	summary.enter(StagePersisting)
	persisted, firstErr := w.persistStage(ctx, period, req.CreatedBy, summary)
	if persisted == 0 {
		if firstErr == nil {
			firstErr = errors.New("no dimension was persisted")
		}
		return fail(firstErr)
	}

	summary.enter(StageCompleted)
	log.WithFields(logrus.Fields{
		"state":    StageCompleted,
		"partial":  summary.Partial(),
		"warnings": len(summary.Warnings),
	}).Info("upload completed")

	w.afterCompleted(ctx, req, period, summary, log)
	return summary, nil
}

// parseStage opens the workbook and locates every section. It fails when the workbook
// is unreadable or when not a single section can be located.
func (w *SalesIngestion) parseStage(ctx context.Context, req UploadRequest, summary *UploadSummary) (sheets.Workbook, error) {
	_, span := ingestionTracer.Start(ctx, "ventas.parse")
	defer span.End()

	wb, err := sheets.Open(req.Filename, req.Data)
	if err != nil {
		return nil, &models.ParseError{Reason: "workbook cannot be opened", Err: err}
	}

	parser := w.parser()
	if err := parser.CheckWorkbook(wb); err != nil {
		wb.Close()
		return nil, err
	}

	var firstParseErr error
	for _, spec := range models.Dimensions() {
		result := &DimensionResult{Dimension: spec.Dimension}
		summary.Dimensions = append(summary.Dimensions, result)

		cursor, err := parser.Parse(wb, string(spec.Dimension))
		if errors.Is(err, sheets.ErrSectionNotFound) {
			result.Status = DimensionNotFound
			continue
		}
		if err != nil {
			result.Status = DimensionFailed
			result.Error = errorInfo(err)
			if firstParseErr == nil {
				firstParseErr = err
			}
			continue
		}

		sec := cursor.Section()
		result.Sheet = sec.Sheet
		result.HeaderRow = sec.HeaderRow
		for cursor.Next() {
			result.raw = append(result.raw, cursor.Row())
		}
		cursor.Close()
		for _, f := range cursor.Failures() {
			summary.warn(Warning{Dimension: spec.Dimension, Sheet: f.Sheet, Row: f.Row, Field: f.Field, Reason: f.Reason})
		}
		result.Skipped += len(cursor.Failures())
		if err := cursor.Err(); err != nil {
			result.Status = DimensionFailed
			result.Error = errorInfo(&models.ParseError{Layout: string(spec.Dimension), Sheet: sec.Sheet, Reason: "sheet cannot be read", Err: err})
			continue
		}
		result.Rows = len(result.raw) + len(cursor.Failures())
	}

	if len(summary.located()) == 0 {
		wb.Close()
		if firstParseErr != nil {
			return nil, firstParseErr
		}
		return nil, &models.ParseError{Reason: "no sales section found in workbook", Err: sheets.ErrSectionNotFound}
	}
	span.SetAttributes(attribute.Int("sections", len(summary.located())))
	return wb, nil
}

func (w *SalesIngestion) normalizeStage(ctx context.Context, period models.Period, createdBy string, summary *UploadSummary) {
	_, span := ingestionTracer.Start(ctx, "ventas.normalize")
	defer span.End()

	for _, d := range summary.located() {
		rows := make([]models.NormalizedRow, 0, len(d.raw))
		for _, raw := range d.raw {
			rec, err := models.NormalizeRow(d.Dimension, period, createdBy, raw)
			if err != nil {
				d.Skipped++
				var verr *models.ValidationError
				if errors.As(err, &verr) {
					summary.warn(Warning{Dimension: d.Dimension, Sheet: raw.Sheet, Row: verr.Row, Field: verr.Field, Value: verr.Value, Reason: verr.Reason})
				} else {
					summary.warn(Warning{Dimension: d.Dimension, Sheet: raw.Sheet, Row: raw.Index, Reason: err.Error()})
				}
				continue
			}
			rows = append(rows, models.NormalizedRow{Row: raw.Index, Record: rec})
		}

		kept, dropped := models.DedupeRows(d.Dimension, rows)
		for _, verr := range dropped {
			summary.warn(Warning{Dimension: d.Dimension, Sheet: d.Sheet, Row: verr.Row, Value: verr.Value, Reason: verr.Reason})
		}
		d.Skipped += len(dropped)
		d.records = kept
		d.raw = nil

		if d.Dimension == models.DimensionHour {
			for _, r := range kept {
				summary.HourTotal = summary.HourTotal.Add(r.Record.(models.SalesByHour).Monto)
			}
		}
	}
}

// crossCheck compares the printed grand total with the sum of the hourly amounts.
func (w *SalesIngestion) crossCheck(wb sheets.Workbook, summary *UploadSummary) {
	reported, ok := sheets.FindLabeledAmount(wb, reportedTotalLabel, sheets.HeaderScanRows)
	if !ok {
		return
	}
	summary.ReportedTotal = &reported
	hours := false
	for _, d := range summary.located() {
		hours = hours || d.Dimension == models.DimensionHour
	}
	if !hours {
		return
	}
	if diff := reported.Sub(summary.HourTotal).Abs(); diff.GreaterThan(crossCheckDelta) {
		summary.warn(Warning{
			Dimension: models.DimensionHour,
			Field:     "monto",
			Value:     summary.HourTotal.StringFixed(2),
			Reason:    fmt.Sprintf("hourly amounts add up to %s but the report total is %s", summary.HourTotal.StringFixed(2), reported.StringFixed(2)),
		})
	}
}

// persistStage writes each located dimension in its own transaction and keeps going on failure.
func (w *SalesIngestion) persistStage(ctx context.Context, period models.Period, createdBy string, summary *UploadSummary) (int, error) {
	ctx, span := ingestionTracer.Start(ctx, "ventas.persist")
	defer span.End()

	persisted := 0
	var firstErr error
	for _, d := range summary.located() {
		records := make([]models.SalesRecord, 0, len(d.records))
		for _, r := range d.records {
			records = append(records, r.Record)
		}

		counts, err := w.Persister.UpsertBatch(ctx, d.Dimension, period, createdBy, records)
		if err != nil {
			var perr *models.PersistenceError
			if !errors.As(err, &perr) {
				err = &models.PersistenceError{Dimension: d.Dimension, Err: err}
			}
			d.Status = DimensionFailed
			d.Error = errorInfo(err)
			if firstErr == nil {
				firstErr = err
			}
			config.LogError(w.logger(), "salesIngestionWorkflow.go", "persistStage", string(d.Dimension), period, err)
			continue
		}
		d.Status = DimensionCompleted
		d.UpsertCounts = counts
		persisted++
	}
	span.SetAttributes(attribute.Int("persisted", persisted))
	return persisted, firstErr
}

// afterCompleted archives the raw workbook and announces the upload. Both are best effort.
func (w *SalesIngestion) afterCompleted(ctx context.Context, req UploadRequest, period models.Period, summary *UploadSummary, log *logrus.Entry) {
	if w.Archive != nil {
		object := utils.WorkbookObjectName(period.Sucursal, period.Anio, period.Mes, period.Semana, summary.UploadId, req.Filename)
		url, err := w.Archive(ctx, object, req.Filename, req.Data)
		if err != nil {
			log.Warn("failed to archive workbook: " + err.Error())
		} else {
			summary.ArchiveUrl = url
		}
	}

	if w.Publish != nil {
		counts := map[string]int{}
		for _, d := range summary.Dimensions {
			if d.Status == DimensionCompleted {
				counts[string(d.Dimension)] = d.Inserted + d.Updated + d.Unchanged
			}
		}
		msgId, err := w.Publish(ctx, config.SalesIngestedMessage{
			UploadId:      summary.UploadId,
			CorrelationId: summary.CorrelationId,
			Sucursal:      period.Sucursal,
			Anio:          period.Anio,
			Mes:           period.Mes,
			Semana:        period.Semana,
			CreatedBy:     req.CreatedBy,
			Counts:        counts,
			IngestedAt:    time.Now().UTC(),
		})
		if err != nil {
			log.Warn("failed to publish ventas.ingested: " + err.Error())
		} else {
			log.WithField("message_id", msgId).Debug("published ventas.ingested")
		}
	}
}
