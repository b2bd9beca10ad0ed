package tabular

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/importer"
)

// paperColumns maps header aliases (English field names and the Chinese
// headers used on circulated templates) to canonical paper-row fields.
var paperColumns = map[string]string{
	"projectid":   "projectId",
	"项目id":        "projectId",
	"applicantid": "applicantId",
	"申请人id":       "applicantId",
	"occurdate":   "occurDate",
	"发生日期":        "occurDate",
	"category":    "category",
	"费用类别":        "category",
	"amount":      "amount",
	"金额":          "amount",
	"taxamount":   "taxAmount",
	"税额":          "taxAmount",
	"remark":      "remark",
	"备注":          "remark",
}

// ReadPaperRows decodes the first worksheet of an uploaded paper-claim
// spreadsheet into import rows. Cell-level problems (blank or non-numeric
// amounts) surface as NaN values for the reconciler to reject row by row;
// only an unreadable workbook fails the call.
func ReadPaperRows(r io.Reader) ([]importer.PaperRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("cannot read spreadsheet: %s", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("spreadsheet has no readable worksheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Validation("cannot read worksheet %q: %s", sheets[0], err)
	}
	if len(rows) == 0 {
		return []importer.PaperRow{}, nil
	}

	fieldByCol := map[int]string{}
	for col, header := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(header))
		if field, ok := paperColumns[key]; ok {
			fieldByCol[col] = field
		}
	}
	if len(fieldByCol) == 0 {
		return nil, apperr.Validation("worksheet %q has no recognizable header row", sheets[0])
	}

	out := make([]importer.PaperRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		fields := map[string]string{}
		for col, value := range cells {
			if field, ok := fieldByCol[col]; ok {
				fields[field] = strings.TrimSpace(value)
			}
		}
		out = append(out, importer.PaperRow{
			ProjectID:   fields["projectId"],
			ApplicantID: fields["applicantId"],
			OccurDate:   fields["occurDate"],
			Category:    fields["category"],
			Amount:      parseAmount(fields["amount"], math.NaN()),
			TaxAmount:   parseAmount(fields["taxAmount"], 0),
			Remark:      fields["remark"],
		})
	}
	return out, nil
}

func parseAmount(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return fallback
	}
	return f
}
