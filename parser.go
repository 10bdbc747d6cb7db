package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Severity is the interaction severity vocabulary. Canonical form is
// lower-case; input is accepted case-insensitively and anything outside the
// four levels is a parse error, never a silent default.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
)

// ParseSeverity canonicalizes a severity value.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityModerate:
		return SeverityModerate, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeveritySevere:
		return SeveritySevere, true
	}
	return "", false
}

// RawInteractionRecord is one structurally valid source row. It exists only
// during import and is never persisted directly.
type RawInteractionRecord struct {
	Row            int      `json:"row"`
	SupplementName string   `json:"supplementName"`
	MedicationName string   `json:"medicationName"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// RecordDiagnostic describes one malformed source row.
type RecordDiagnostic struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// SourceFormat selects the Record Parser's input grammar.
type SourceFormat string

const (
	FormatCSV       SourceFormat = "csv"
	FormatSQLValues SourceFormat = "sql"
)

// parseRecords reads raw interaction rows from src. Malformed rows are
// dropped with a diagnostic; the error return is reserved for structural
// failures (unreadable source, missing header columns).
func parseRecords(src io.Reader, format SourceFormat) ([]RawInteractionRecord, []RecordDiagnostic, error) {
	switch format {
	case FormatSQLValues:
		return parseSQLValues(src)
	case FormatCSV:
		return parseCSV(src)
	}
	return nil, nil, fmt.Errorf("unknown source format %q", format)
}

var csvColumns = []string{"supplement_name", "medication_name", "severity", "description", "recommendation"}

// parseCSV reads a delimited source with a header row. Quoted fields use
// standard quote-doubling for embedded quotes.
func parseCSV(src io.Reader) ([]RawInteractionRecord, []RecordDiagnostic, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty source: no header row")
		}
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns[:3] {
		if _, ok := colIndex[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q in header", col)
		}
	}

	cell := func(row []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var (
		records     []RawInteractionRecord
		diagnostics []RecordDiagnostic
		rowNum      int
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			diagnostics = append(diagnostics, RecordDiagnostic{Row: rowNum, Reason: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		rec, diag := validateRecord(rowNum,
			cell(row, "supplement_name"),
			cell(row, "medication_name"),
			cell(row, "severity"),
			cell(row, "description"),
			cell(row, "recommendation"),
		)
		if diag != nil {
			diagnostics = append(diagnostics, *diag)
			continue
		}
		records = append(records, rec)
	}

	return records, diagnostics, nil
}

// parseSQLValues reads interaction rows out of literal SQL VALUES blocks,
// e.g. INSERT INTO interactions (...) VALUES ('Omega-3', 'Warfarin', 'high',
// 'desc', 'rec'), (...). Tuples carry the five columns in order. The scanner
// tracks quote and paren depth explicitly; doubled single-quotes inside a
// string literal un-double to one quote.
func parseSQLValues(src io.Reader) ([]RawInteractionRecord, []RecordDiagnostic, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read source: %w", err)
	}

	tuples := scanValueTuples(string(data))

	var (
		records     []RawInteractionRecord
		diagnostics []RecordDiagnostic
	)
	for i, fields := range tuples {
		rowNum := i + 1
		if len(fields) != len(csvColumns) {
			diagnostics = append(diagnostics, RecordDiagnostic{
				Row:    rowNum,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(csvColumns), len(fields)),
			})
			continue
		}
		rec, diag := validateRecord(rowNum, fields[0], fields[1], fields[2], fields[3], fields[4])
		if diag != nil {
			diagnostics = append(diagnostics, *diag)
			continue
		}
		records = append(records, rec)
	}

	return records, diagnostics, nil
}

// scanValueTuples extracts the tuples following each VALUES keyword. A tuple
// field is either a single-quoted literal (with '' escaping) or a bare token
// (numbers, NULL); bare NULL becomes the empty string. Parens inside quoted
// literals carry no structure; bare nested parens are tracked by depth.
func scanValueTuples(src string) [][]string {
	var (
		tuples     [][]string
		fields     []string
		field      strings.Builder
		quoted     bool
		inString   bool
		inTuple    bool
		collecting bool
		depth      int
	)

	flushField := func() {
		val := field.String()
		if !quoted {
			val = strings.TrimSpace(val)
			if strings.EqualFold(val, "null") {
				val = ""
			}
		}
		fields = append(fields, val)
		field.Reset()
		quoted = false
	}

	skipString := func(i int) int {
		for i++; i < len(src); i++ {
			if src[i] != '\'' {
				continue
			}
			if i+1 < len(src) && src[i+1] == '\'' {
				i++
				continue
			}
			return i
		}
		return i
	}

	for i := 0; i < len(src); i++ {
		ch := src[i]

		if inString {
			if ch == '\'' {
				if i+1 < len(src) && src[i+1] == '\'' {
					field.WriteByte('\'')
					i++
					continue
				}
				inString = false
				continue
			}
			field.WriteByte(ch)
			continue
		}

		if !collecting {
			if ch == '\'' {
				i = skipString(i)
				continue
			}
			if (ch == 'v' || ch == 'V') && isWordBoundary(src, i-1) &&
				i+6 <= len(src) && strings.EqualFold(src[i:i+6], "values") && isWordBoundary(src, i+6) {
				collecting = true
				i += 5
			}
			continue
		}

		if !inTuple {
			switch {
			case ch == '(':
				inTuple = true
				depth = 1
				fields = nil
			case ch == ';':
				collecting = false
			case ch == ',' || ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
				// between tuples
			default:
				// trailing clause such as ON CONFLICT ends the block
				collecting = false
			}
			continue
		}

		switch ch {
		case '\'':
			inString = true
			quoted = true
		case '(':
			depth++
			field.WriteByte(ch)
		case ')':
			depth--
			if depth == 0 {
				flushField()
				tuples = append(tuples, fields)
				fields = nil
				inTuple = false
			} else {
				field.WriteByte(ch)
			}
		case ',':
			if depth == 1 {
				flushField()
			} else {
				field.WriteByte(ch)
			}
		default:
			field.WriteByte(ch)
		}
	}

	return tuples
}

func isWordBoundary(src string, i int) bool {
	if i < 0 || i >= len(src) {
		return true
	}
	ch := src[i]
	return !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_')
}

// validateRecord applies the structural rules shared by both formats.
func validateRecord(row int, supplement, medication, severity, description, recommendation string) (RawInteractionRecord, *RecordDiagnostic) {
	supplement = strings.TrimSpace(supplement)
	medication = strings.TrimSpace(medication)

	switch {
	case supplement == "":
		return RawInteractionRecord{}, &RecordDiagnostic{Row: row, Reason: "missing supplement_name"}
	case medication == "":
		return RawInteractionRecord{}, &RecordDiagnostic{Row: row, Reason: "missing medication_name"}
	case strings.TrimSpace(severity) == "":
		return RawInteractionRecord{}, &RecordDiagnostic{Row: row, Reason: "missing severity"}
	}

	sev, ok := ParseSeverity(severity)
	if !ok {
		return RawInteractionRecord{}, &RecordDiagnostic{Row: row, Reason: fmt.Sprintf("invalid severity %q", severity)}
	}

	return RawInteractionRecord{
		Row:            row,
		SupplementName: supplement,
		MedicationName: medication,
		Severity:       sev,
		Description:    strings.TrimSpace(description),
		Recommendation: strings.TrimSpace(recommendation),
	}, nil
}
