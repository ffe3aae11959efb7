package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"complaint-analytics-service/internal/model"
)

var (
	ErrMissingDateColumn    = errors.New("no date column found")
	ErrMissingSegmentColumn = errors.New("no Lob column found; segment rule cannot be applied")
	ErrEmptyFile            = errors.New("file is empty")
)

type Options struct {
	// Segment keeps only rows whose Lob equals it. Empty disables the rule.
	Segment        string
	RefundKeywords []string
	Schema         []FieldAlias
}

// Source is one uploaded file.
type Source struct {
	Name string
	Body io.Reader
}

type Result struct {
	Table model.EventTable
	Info  model.IngestInfo
}

type Reader struct {
	opts   Options
	refund RefundMatcher
	log    zerolog.Logger
}

func NewReader(opts Options, log zerolog.Logger) *Reader {
	if len(opts.Schema) == 0 {
		opts.Schema = DefaultSchema
	}
	if opts.RefundKeywords == nil {
		opts.RefundKeywords = DefaultRefundKeywords
	}
	return &Reader{
		opts:   opts,
		refund: NewRefundMatcher(opts.RefundKeywords),
		log:    log.With().Str("component", "ingest").Logger(),
	}
}

// ReadAll ingests every source into one table. A file that cannot be read is
// reported in Info.FileErrors and the remaining files are still processed.
func (r *Reader) ReadAll(sources []Source) Result {
	result := Result{}
	seen := make(map[string]struct{})

	for _, src := range sources {
		result.Info.Files++
		events, fields, err := r.readOne(src, &result.Info)
		if err != nil {
			r.log.Warn().Err(err).Str("file", src.Name).Msg("skipping file")
			result.Info.FileErrors = append(result.Info.FileErrors, model.FileError{File: src.Name, Error: err.Error()})
			continue
		}
		for _, f := range fields {
			seen[f] = struct{}{}
		}
		result.Table.Events = append(result.Table.Events, events...)
	}

	for _, entry := range r.opts.Schema {
		if entry.Field == FieldDate || entry.Field == model.FieldLob {
			continue
		}
		if _, ok := seen[entry.Field]; ok {
			result.Table.Columns = append(result.Table.Columns, entry.Field)
		}
	}
	if len(result.Table.Events) > 0 || len(seen) > 0 {
		result.Table.Columns = append(result.Table.Columns, model.FieldIsRefund)
	}

	// Files may carry different column subsets; fill the gaps so every event
	// has every column.
	for _, event := range result.Table.Events {
		for _, column := range result.Table.Columns {
			if _, ok := event.Fields[column]; !ok {
				event.Fields[column] = model.UnknownValue
			}
		}
	}

	result.Info.RowsKept = len(result.Table.Events)
	r.log.Info().
		Int("files", result.Info.Files).
		Int("rows_read", result.Info.RowsRead).
		Int("rows_kept", result.Info.RowsKept).
		Int("dropped_by_segment", result.Info.DroppedBySegment).
		Int("dropped_by_date", result.Info.DroppedByDate).
		Msg("ingest finished")

	return result
}

func (r *Reader) readOne(src Source, info *model.IngestInfo) ([]model.Event, []string, error) {
	raw, err := io.ReadAll(src.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read: %w", err)
	}
	text := decode(raw)
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyFile
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read header: %w", err)
	}
	columns := resolve(r.opts.Schema, headers)

	dateIdx, ok := columns[FieldDate]
	if !ok {
		return nil, nil, ErrMissingDateColumn
	}
	lobIdx, hasLob := columns[model.FieldLob]
	if r.opts.Segment != "" && !hasLob {
		return nil, nil, ErrMissingSegmentColumn
	}

	fields := make([]string, 0, len(columns))
	for _, entry := range r.opts.Schema {
		if _, ok := columns[entry.Field]; ok && entry.Field != FieldDate && entry.Field != model.FieldLob {
			fields = append(fields, entry.Field)
		}
	}

	var events []model.Event
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("unable to read CSV: %w", err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		info.RowsRead++

		if r.opts.Segment != "" && getValue(record, lobIdx) != r.opts.Segment {
			info.DroppedBySegment++
			continue
		}

		date, err := parseDate(getValue(record, dateIdx))
		if err != nil {
			info.DroppedByDate++
			continue
		}

		values := make(map[string]string, len(fields)+1)
		for _, field := range fields {
			value := getValue(record, columns[field])
			if value == "" {
				value = model.UnknownValue
			}
			values[field] = value
		}
		values[model.FieldIsRefund] = "0"
		if r.refund.Match(values[model.FieldCategory]) {
			values[model.FieldIsRefund] = "1"
		}

		events = append(events, model.Event{Date: date, Fields: values})
	}

	r.log.Debug().Str("file", src.Name).Int("rows", len(events)).Strs("fields", fields).Msg("file ingested")
	return events, fields, nil
}

// decode returns UTF-8 text, falling back to ISO-8859-1 for legacy exports.
func decode(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
