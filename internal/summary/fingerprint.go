package summary

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

// WriteNDJSON writes one JSON object per row. Amounts are encoded as decimal
// strings, which BigQuery load jobs accept for NUMERIC columns.
func WriteNDJSON(w io.Writer, rows []domain.AwardFinancialSummary) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range rows {
		r := rows[i]
		if r.DefCodes == nil {
			r.DefCodes = []string{}
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("WriteNDJSON: encoding award %d: %w", r.AwardID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("WriteNDJSON: flushing: %w", err)
	}
	return nil
}

// Fingerprint is the SHA-256 of the NDJSON encoding of rows. Two refreshes of
// the same snapshot must return the same fingerprint.
func Fingerprint(rows []domain.AwardFinancialSummary) (string, error) {
	h := sha256.New()
	if err := WriteNDJSON(h, rows); err != nil {
		return "", fmt.Errorf("Fingerprint: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
