package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/grainloss/internal/config"
	"github.com/mamadbah2/grainloss/internal/domain/models"
)

// RangeReader fetches rectangular value ranges from a spreadsheet.
type RangeReader interface {
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
}

// GoogleSheetRepository reads spreadsheet ranges through the Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a read-only Google Sheets client.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// ReadRange fetches a rectangular data range from the spreadsheet.
func (r *GoogleSheetRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("sheetRange must not be empty")
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}

	return resp.Values, nil
}

// VarietyCatalog exposes a sheet laid out as grain type | variety | active | cost per kg
// as a variety source. The first row is a header.
type VarietyCatalog struct {
	reader     RangeReader
	sheetRange string
	logger     *zap.Logger
}

// NewVarietyCatalog wires a sheet-backed variety source.
func NewVarietyCatalog(reader RangeReader, sheetRange string, logger *zap.Logger) *VarietyCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VarietyCatalog{reader: reader, sheetRange: sheetRange, logger: logger}
}

// ListVarieties parses every well-formed row of the catalog range.
func (c *VarietyCatalog) ListVarieties(ctx context.Context) ([]models.GrainVariety, error) {
	rows, err := c.reader.ReadRange(ctx, c.sheetRange)
	if err != nil {
		return nil, fmt.Errorf("load variety range: %w", err)
	}

	var out []models.GrainVariety
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}

		cost, err := parseFloat(row[3])
		if err != nil {
			c.logger.Debug("skip variety row with invalid cost", zap.Int("row", i+1), zap.Any("value", row[3]), zap.Error(err))
			continue
		}

		out = append(out, models.GrainVariety{
			ID:        uint(i),
			GrainType: strings.TrimSpace(fmt.Sprint(row[0])),
			Variety:   strings.TrimSpace(fmt.Sprint(row[1])),
			Active:    parseBool(row[2]),
			CostPerKg: cost,
		})
	}
	return out, nil
}

func parseFloat(value interface{}) (float64, error) {
	str := strings.TrimSpace(fmt.Sprint(value))
	if str == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	str = strings.ReplaceAll(str, ",", ".")
	return strconv.ParseFloat(str, 64)
}

func parseBool(value interface{}) bool {
	switch strings.ToLower(strings.TrimSpace(fmt.Sprint(value))) {
	case "true", "1", "yes", "si", "sí", "x", "activo":
		return true
	default:
		return false
	}
}
