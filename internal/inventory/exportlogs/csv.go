package exportlogs

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"hcsc-backend/internal/platform/clock"
)

var csvHeader = []string{"id", "date", "material_id", "material_title", "quantity", "note", "exported_by", "erp_updated"}

// WriteCSV: Excel でそのまま開けるよう BOM 付き UTF-8 で書く
func WriteCSV(w io.Writer, logs []ExportLog) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range logs {
		rec := []string{
			l.ID,
			l.CreatedAt.Format(clock.DateLayout),
			l.MaterialID,
			cell(l.MaterialTitle),
			strconv.Itoa(l.Quantity),
			cell(deref(l.Note)),
			cell(deref(l.ExportedBy)),
			strconv.FormatBool(l.ERPUpdated),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return tw.Close()
}

// cell: 先頭が = + - @ だと Excel が数式として評価するので ' を前置する
func cell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
