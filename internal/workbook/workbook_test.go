package workbook

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/nmercier/facturier/internal/extract"
)

func strptr(s string) *string { return &s }

func record(company, number, date string, items ...extract.LineItem) *extract.InvoiceRecord {
	return &extract.InvoiceRecord{
		CompanyName: company,
		InvoiceReference: extract.InvoiceReference{
			Number:  number,
			DateRaw: date,
		},
		Articles: items,
	}
}

func reopen(t *testing.T, wb *Workbook) *excelize.File {
	t.Helper()
	b, err := wb.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	return f
}

func TestMergeCaseVariantsShareOneSheet(t *testing.T) {
	wb := Load(filepath.Join(t.TempDir(), "missing.xlsx"), nil)

	records := []*extract.InvoiceRecord{
		record("ACME Corp", "F100", "03/14/2024",
			extract.LineItem{Reference: strptr("A1"), Designation: "Widget", Quantity: 2, UnitPrice: 10, TotalPrice: 20},
		),
		record("Acme corp", "F101", "03/15/2024",
			extract.LineItem{Reference: strptr("B2"), Designation: "Gadget", Quantity: 1, UnitPrice: 5, TotalPrice: 5},
		),
	}
	stats, err := wb.Merge(records)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if stats.Invoices != 2 || stats.SheetsCreated != 1 || stats.Rows != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	f := reopen(t, wb)
	defer f.Close()

	list := f.GetSheetList()
	if len(list) != 1 || list[0] != "ACME CORP" {
		t.Fatalf("sheet list = %v, want [ACME CORP]", list)
	}

	rows, err := f.GetRows("ACME CORP")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// header, blank, item, blank, item
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5: %v", len(rows), rows)
	}
	if rows[0][0] != Headers[0] {
		t.Errorf("header row = %v", rows[0])
	}
	if len(rows[1]) != 0 {
		t.Errorf("row 2 should be the blank separator, got %v", rows[1])
	}
	if rows[2][0] != "F100 du 14/03/2024" {
		t.Errorf("invoice label = %q, want %q", rows[2][0], "F100 du 14/03/2024")
	}
	if rows[2][1] != "A1" || rows[2][2] != "Widget" || rows[2][3] != "2" || rows[2][4] != "10" || rows[2][5] != "20" {
		t.Errorf("item row = %v", rows[2])
	}
	if len(rows[3]) != 0 {
		t.Errorf("row 4 should be the blank separator, got %v", rows[3])
	}
	if rows[4][0] != "F101 du 15/03/2024" {
		t.Errorf("second invoice label = %q", rows[4][0])
	}
}

func TestMergeLabelRepeatsAcrossItems(t *testing.T) {
	wb := Load("", nil)

	rec := record("Fournisseur", "F1", "2024-01-02",
		extract.LineItem{Reference: nil, Designation: "Un", Quantity: 1, UnitPrice: 1, TotalPrice: 1},
		extract.LineItem{Reference: strptr("R2"), Designation: "Deux", Quantity: 2, UnitPrice: 2, TotalPrice: 4},
	)
	if _, err := wb.Merge([]*extract.InvoiceRecord{rec}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	f := reopen(t, wb)
	defer f.Close()

	rows, err := f.GetRows("FOURNISSEUR")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	want := "F1 du 02/01/2024"
	if rows[2][0] != want || rows[3][0] != want {
		t.Errorf("label not repeated: %q / %q", rows[2][0], rows[3][0])
	}
	// Null reference renders as an empty cell.
	if len(rows[2]) > 1 && rows[2][1] != "" {
		t.Errorf("nil reference wrote %q", rows[2][1])
	}
}

func TestMergeSkipsNilRecords(t *testing.T) {
	wb := Load("", nil)

	stats, err := wb.Merge([]*extract.InvoiceRecord{
		nil,
		record("X", "F1", "01/02/2024",
			extract.LineItem{Designation: "Item", Quantity: 1, UnitPrice: 1, TotalPrice: 1}),
		nil,
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if stats.Skipped != 2 || stats.Invoices != 1 {
		t.Errorf("stats = %+v, want 2 skipped / 1 merged", stats)
	}
}

func TestMergeAppendsToExistingWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")

	seed := excelize.NewFile()
	if _, err := seed.NewSheet("SOCIETE GENERALE"); err != nil {
		t.Fatalf("seed sheet: %v", err)
	}
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := seed.SetCellValue("SOCIETE GENERALE", cell, h); err != nil {
			t.Fatalf("seed header: %v", err)
		}
	}
	if err := seed.SetCellValue("SOCIETE GENERALE", "A3", "F0 du 01/01/2024"); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	if err := seed.SaveAs(path); err != nil {
		t.Fatalf("save seed: %v", err)
	}

	wb := Load(path, nil)
	rec := record("Société Générale", "F2", "02/03/2024",
		extract.LineItem{Designation: "Nouveau", Quantity: 1, UnitPrice: 3, TotalPrice: 3})
	stats, err := wb.Merge([]*extract.InvoiceRecord{rec})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if stats.SheetsCreated != 0 {
		t.Errorf("accent variant created a new sheet: %+v", stats)
	}

	f := reopen(t, wb)
	defer f.Close()

	rows, err := f.GetRows("SOCIETE GENERALE")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// Existing rows preserved, new invoice appended after a blank row.
	if rows[2][0] != "F0 du 01/01/2024" {
		t.Errorf("existing row rewritten: %v", rows[2])
	}
	last := rows[len(rows)-1]
	if last[0] != "F2 du 02/03/2024" {
		t.Errorf("appended row = %v", last)
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	csv := "col1,col2\nval1,val2\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	wb := Load(path, nil)
	f := reopen(t, wb)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "col1" || rows[1][1] != "val2" {
		t.Errorf("csv rows = %v", rows)
	}
}

func TestLoadMalformedStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.xlsx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	wb := Load(path, nil)
	rec := record("X", "F1", "01/02/2024",
		extract.LineItem{Designation: "Item", Quantity: 1, UnitPrice: 1, TotalPrice: 1})
	if _, err := wb.Merge([]*extract.InvoiceRecord{rec}); err != nil {
		t.Fatalf("Merge on recovered-empty workbook failed: %v", err)
	}
}

func TestOutputName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/tmp/compta.xlsx", "compta.xlsx"},
		{"/tmp/export.csv", "export.xlsx"},
		{"", "factures.xlsx"},
	}
	for _, c := range cases {
		if got := OutputName(c.in); got != c.want {
			t.Errorf("OutputName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
