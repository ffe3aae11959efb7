package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"complaint-analytics-service/internal/auth"
	"complaint-analytics-service/internal/model"
)

const complaintsCSV = "Lob,Date,Member Id,Hub,City,Category\n" +
	"bbdaily-b2c,10/03/2024,M1,Hub A,Pune,Amount Credited\n" +
	"bbdaily-b2c,08/03/2024,M1,Hub A,Pune,Late delivery\n" +
	"bbdaily-b2c,01/03/2024,M2,Hub B,Delhi,Late delivery\n" +
	"bb-b2b,10/03/2024,M3,Hub B,Delhi,Late delivery\n"

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "complaints.csv")
	if err := os.WriteFile(path, []byte(complaintsCSV), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestReportCommand(t *testing.T) {
	input := writeInput(t)

	out, err := run(t, "report", input, "--group", "City", "--buckets", "cumulative")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	want := "City,range_total,1D,2D,3D,7D,30D\nPune,2,1,1,2,2,2\nDelhi,1,0,0,0,0,1\n"
	if out != want {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = run(t, "report", input, "--group", "City", "--buckets", "none", "--daily", "--from", "2024-03-08", "--sort", "keys")
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}
	if !strings.HasPrefix(out, "City,range_total,08-Mar,09-Mar,10-Mar\nPune,2,1,0,1\n") {
		t.Fatalf("unexpected daily output:\n%s", out)
	}
}

func TestReportCommandErrors(t *testing.T) {
	input := writeInput(t)

	if _, err := run(t, "report", input, "--group", "Region"); err == nil {
		t.Fatalf("expected an error for unknown group keys")
	}
	if _, err := run(t, "report", input, "--from", "03/01/2024"); err == nil {
		t.Fatalf("expected an error for a malformed date")
	}
	if _, err := run(t, "report", input, "--format", "xlsx"); err == nil {
		t.Fatalf("expected xlsx without --out to fail")
	}
	if _, err := run(t, "report", input, "--lob", "unknown-lob"); err == nil {
		t.Fatalf("expected an error when no rows match the lob")
	}
}

func TestWatchlistCommandWritesXLSX(t *testing.T) {
	input := writeInput(t)
	outPath := filepath.Join(t.TempDir(), "watchlist.xlsx")

	if _, err := run(t, "watchlist", input, "--format", "xlsx", "--out", outPath); err != nil {
		t.Fatalf("watchlist: %v", err)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("watchlist")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != model.FieldMember || rows[1][0] != "M1" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--secret", "s3cret", "--role", "admin")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := auth.NewParser("s3cret").Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Role != model.RoleAdmin {
		t.Fatalf("unexpected role %q", claims.Role)
	}
}
