// Package export builds the admin spreadsheet dump of the bot's database.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mshv/pillbot/internal/store"
)

const (
	usersSheet        = "Users"
	interactionsSheet = "Interactions"
	tsLayout          = "2006-01-02 15:04"
)

// WriteWorkbook dumps users and the interaction log into an xlsx file in dir
// and returns its path. The caller is responsible for removing the file.
func WriteWorkbook(ctx context.Context, repo store.Repo, dir string) (string, error) {
	users, err := repo.ListUserExports(ctx)
	if err != nil {
		return "", fmt.Errorf("load users: %w", err)
	}
	interactions, err := repo.ListInteractions(ctx)
	if err != nil {
		return "", fmt.Errorf("load interactions: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return "", err
	}

	if err := writeUsersSheet(f, headerStyle, users); err != nil {
		return "", err
	}
	if err := writeInteractionsSheet(f, headerStyle, interactions); err != nil {
		return "", err
	}

	// Drop the default sheet that NewFile creates.
	_ = f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(usersSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	path := filepath.Join(dir, fmt.Sprintf("pillbot_data_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeUsersSheet(f *excelize.File, headerStyle int, users []store.UserExport) error {
	if _, err := f.NewSheet(usersSheet); err != nil {
		return err
	}
	headers := []string{
		"User ID", "Username", "Reminder time", "Timezone",
		"Updated", "Pills taken", "First taken", "Interactions",
	}
	if err := writeHeader(f, usersSheet, headerStyle, headers); err != nil {
		return err
	}
	for i, u := range users {
		row := i + 2
		values := []any{
			u.UserID,
			orDash(u.Username),
			orDash(u.RemindAt),
			orDash(u.TZ),
			u.UpdatedAt.Format(tsLayout),
			u.PillsTaken,
			orDash(u.FirstTaken),
			u.Interactions,
		}
		if err := writeRow(f, usersSheet, row, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(usersSheet, "A", "H", 18)
}

func writeInteractionsSheet(f *excelize.File, headerStyle int, interactions []store.Interaction) error {
	if _, err := f.NewSheet(interactionsSheet); err != nil {
		return err
	}
	headers := []string{"ID", "User ID", "Username", "Kind", "Data", "Timestamp"}
	if err := writeHeader(f, interactionsSheet, headerStyle, headers); err != nil {
		return err
	}
	for i, it := range interactions {
		row := i + 2
		values := []any{
			it.ID,
			it.UserID,
			orDash(it.Username),
			it.Kind,
			orDash(it.Data),
			it.CreatedAt.Format(tsLayout),
		}
		if err := writeRow(f, interactionsSheet, row, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(interactionsSheet, "A", "F", 18)
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) error {
	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
