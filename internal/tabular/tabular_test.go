package tabular

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildPaperWorkbook(t *testing.T, header []string, rows [][]any) []byte {
	t.Helper()
	file, err := WriteWorkbook([]Sheet{{Name: "Sheet1", Header: header, Rows: rows}})
	require.NoError(t, err)
	return file
}

func TestWriteWorkbookLayout(t *testing.T) {
	file, err := WriteWorkbook([]Sheet{
		{Name: "First", Header: []string{"a", "b"}, Rows: [][]any{{"x", 1}, {"y", 2}}},
		{Name: "Second", Header: []string{"c"}},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(file))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"First", "Second"}, f.GetSheetList())

	rows, err := f.GetRows("First")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Equal(t, []string{"x", "1"}, rows[1])

	second, err := f.GetRows("Second")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, []string{"c"}, second[0])
}

func TestReadPaperRows(t *testing.T) {
	file := buildPaperWorkbook(t,
		[]string{"projectId", "applicantId", "occurDate", "category", "amount", "taxAmount", "remark"},
		[][]any{
			{"P1", "user_a", "2025-07-10", "travel", 120.5, 6.02, "taxi"},
			{"P2", "", "2025-07-11", "meal", "80", "", ""},
		})

	rows, err := ReadPaperRows(bytes.NewReader(file))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "P1", rows[0].ProjectID)
	assert.Equal(t, "user_a", rows[0].ApplicantID)
	assert.Equal(t, "travel", rows[0].Category)
	assert.Equal(t, 120.5, rows[0].Amount)
	assert.Equal(t, 6.02, rows[0].TaxAmount)
	assert.Equal(t, "taxi", rows[0].Remark)

	assert.Equal(t, 80.0, rows[1].Amount)
	assert.Equal(t, 0.0, rows[1].TaxAmount)
}

func TestReadPaperRowsChineseHeaders(t *testing.T) {
	file := buildPaperWorkbook(t,
		[]string{"项目ID", "申请人ID", "发生日期", "费用类别", "金额", "税额", "备注"},
		[][]any{{"P1", "user_a", "2025-07-10", "差旅", 99.9, 5, ""}})

	rows, err := ReadPaperRows(bytes.NewReader(file))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P1", rows[0].ProjectID)
	assert.Equal(t, "差旅", rows[0].Category)
	assert.Equal(t, 99.9, rows[0].Amount)
}

func TestReadPaperRowsBadAmountBecomesNaN(t *testing.T) {
	file := buildPaperWorkbook(t,
		[]string{"projectId", "occurDate", "category", "amount"},
		[][]any{{"P1", "2025-07-10", "travel", "about fifty"}})

	rows, err := ReadPaperRows(bytes.NewReader(file))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, math.IsNaN(rows[0].Amount))
}

func TestReadPaperRowsRejectsUnrecognizableSheet(t *testing.T) {
	file := buildPaperWorkbook(t, []string{"alpha", "beta"}, [][]any{{"1", "2"}})
	_, err := ReadPaperRows(bytes.NewReader(file))
	assert.Error(t, err)
}

func TestReadPaperRowsRejectsGarbage(t *testing.T) {
	_, err := ReadPaperRows(bytes.NewReader([]byte("this is not a workbook")))
	assert.Error(t, err)
}

func TestMonthlyFileName(t *testing.T) {
	name := MonthlyFileName("2025-07")
	assert.Contains(t, name, "monthly_report_2025-07_")
	assert.Contains(t, name, ".xlsx")
}
