// Package output provides output formatting for quotes.
// This package produces human and machine-readable outputs.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"premium-rater/core/rating"
	"premium-rater/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatText is a human-readable summary
	FormatText Format = "text"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// RenderQuote writes a single quote
	RenderQuote(w io.Writer, q *rating.Quote) error

	// RenderBatch writes the results of a batch, one item per line
	RenderBatch(w io.Writer, results []rating.Result) error
}

// Get returns the formatter for format
func Get(format Format) (Formatter, error) {
	switch format {
	case FormatText, "":
		return TextFormatter{}, nil
	case FormatJSON:
		return JSONFormatter{}, nil
	default:
		return nil, errors.Config(fmt.Sprintf("unknown output format %q (want text or json)", format))
	}
}

var printer = message.NewPrinter(language.English)

// TextFormatter renders aligned plain text
type TextFormatter struct{}

// Format implements Formatter
func (TextFormatter) Format() Format { return FormatText }

// RenderQuote implements Formatter
func (TextFormatter) RenderQuote(w io.Writer, q *rating.Quote) error {
	b := q.Breakdown
	rows := []struct{ label, value string }{
		{"Asset Size", printer.Sprintf("%d", q.Request.AssetSize)},
		{"Limit", printer.Sprintf("%d", q.Request.Limit)},
		{"Retention", printer.Sprintf("%d", q.Request.Retention)},
		{"Industry", q.Request.Industry},
		{"", ""},
		{"Base rate", fmt.Sprintf("%.4f", b.BaseRate)},
		{"Retention factor", fmt.Sprintf("%.4f", b.RetentionFactor)},
		{"Limit factor", fmt.Sprintf("%.4f", b.LimitFactor)},
		{"Layer factor", fmt.Sprintf("%.4f", b.LayerFactor)},
		{"Industry factor", fmt.Sprintf("%.4f", b.IndustryFactor)},
		{"Loading", fmt.Sprintf("%.4f", b.Loading)},
		{"", ""},
		{"Premium", printer.Sprintf("%d", q.Premium)},
	}

	if _, err := fmt.Fprintf(w, "Premium quote (tables: %s)\n", q.TableSource); err != nil {
		return err
	}
	for _, row := range rows {
		if row.label == "" {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "  %-18s%s\n", row.label, row.value); err != nil {
			return err
		}
	}
	return nil
}

// RenderBatch implements Formatter
func (TextFormatter) RenderBatch(w io.Writer, results []rating.Result) error {
	failed := 0
	for _, r := range results {
		var err error
		if r.Err != nil {
			failed++
			_, err = fmt.Fprintf(w, "#%-4d error    %s: %s\n", r.Index, errors.TypeOf(r.Err), r.Err.Error())
		} else {
			_, err = fmt.Fprintf(w, "#%-4d premium %s\n", r.Index, printer.Sprintf("%d", r.Quote.Premium))
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d rated, %d failed\n", len(results)-failed, failed)
	return err
}

// JSONFormatter renders JSON
type JSONFormatter struct{}

// Format implements Formatter
func (JSONFormatter) Format() Format { return FormatJSON }

// RenderQuote implements Formatter
func (JSONFormatter) RenderQuote(w io.Writer, q *rating.Quote) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(q)
}

// BatchLine is one line of JSON batch output
type BatchLine struct {
	Index   int           `json:"index"`
	Premium *int64        `json:"premium,omitempty"`
	Quote   *rating.Quote `json:"quote,omitempty"`
	Error   *ErrorBody    `json:"error,omitempty"`
}

// ErrorBody is the serialized form of a failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorBody describes err
func NewErrorBody(err error) *ErrorBody {
	return &ErrorBody{Code: string(errors.TypeOf(err)), Message: err.Error()}
}

// RenderBatch implements Formatter
func (JSONFormatter) RenderBatch(w io.Writer, results []rating.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		line := BatchLine{Index: r.Index}
		if r.Err != nil {
			line.Error = NewErrorBody(r.Err)
		} else {
			premium := r.Quote.Premium
			line.Premium = &premium
			line.Quote = r.Quote
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
