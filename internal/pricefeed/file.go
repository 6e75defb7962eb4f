package pricefeed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

// CSVSource reads a "date,price" file with a header row.
type CSVSource struct {
	Path string
}

func (s CSVSource) Load(_ context.Context) ([]domain.PricePoint, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", s.Path, err)
	}
	defer file.Close()

	points, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return points, nil
}

// ReadCSV parses "date,price" rows. Rows with an unparseable date or price
// are skipped.
func ReadCSV(r io.Reader) ([]domain.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("invalid CSV format: expected at least 2 columns")
	}

	var points []domain.PricePoint
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read data row: %w", err)
		}
		if len(record) < 2 {
			continue
		}

		date, err := dateutil.Parse(record[0])
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			continue
		}
		points = append(points, domain.PricePoint{Date: date, Price: price})
	}

	points = Normalize(points)
	if len(points) == 0 {
		return nil, ErrNoPrices
	}
	return points, nil
}

// JSONSource reads a `[{"date": "...", "price": ...}]` file.
type JSONSource struct {
	Path string
}

func (s JSONSource) Load(_ context.Context) ([]domain.PricePoint, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.Path, err)
	}

	var points []domain.PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}

	points = Normalize(points)
	if len(points) == 0 {
		return nil, ErrNoPrices
	}
	return points, nil
}

// WriteCSV writes points in the format ReadCSV accepts.
func WriteCSV(w io.Writer, points []domain.PricePoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "price"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{p.Date.String(), p.Price.String()}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
