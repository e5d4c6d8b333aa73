package export

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/app"
	"github.com/suseoaa/oaacore/internal/gpa"
)

// GradeSheetExporter periodically dumps every account's grades into a
// Google Sheet, one row per course plus a GPA summary row per student.
type GradeSheetExporter struct {
	service       *app.Service
	scheduler     *gocron.Scheduler
	sheetsService *sheets.Service
}

func NewGradeSheetExporter(service *app.Service) (*GradeSheetExporter, error) {
	cfg := service.Config.Export

	svc, err := sheets.NewService(
		context.Background(),
		option.WithCredentialsFile(cfg.CredentialsPath),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	exporter := &GradeSheetExporter{
		service:       service,
		scheduler:     gocron.NewScheduler(time.UTC),
		sheetsService: svc,
	}

	if _, err := exporter.scheduler.Cron(cfg.Schedule).Do(func() {
		if err := exporter.Export(); err != nil {
			logger.Error.Printf("Grade export failed: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule export: %w", err)
	}

	exporter.scheduler.StartAsync()
	return exporter, nil
}

func (e *GradeSheetExporter) Stop() {
	e.scheduler.Stop()
}

func (e *GradeSheetExporter) Export() error {
	cfg := e.service.Config.Export

	accounts, err := e.service.Store.ListAccounts()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	values := [][]interface{}{
		{"学号", "姓名", "学年", "学期", "课程", "成绩", "学分"},
	}
	for _, account := range accounts {
		grades, err := e.service.Store.ListGrades(account.StudentID)
		if err != nil {
			return fmt.Errorf("failed to list grades for %s: %w", account.StudentID, err)
		}

		for _, g := range grades {
			values = append(values, []interface{}{
				g.StudentID, account.Name, g.Year, g.Term, g.CourseName, g.Score, g.Credit,
			})
		}

		result := gpa.Calculate(grades, nil)
		values = append(values, []interface{}{
			account.StudentID, account.Name, "", "",
			fmt.Sprintf("GPA %.4f / 平均分 %.2f", result.GPA, result.AverageScore),
			"", fmt.Sprintf("%.1f", result.TotalCredits),
		})
	}

	values = append(values, []interface{}{
		fmt.Sprintf("UPD: %s", time.Now().Format("2 January 15:04")),
	})

	clearRange := fmt.Sprintf("%s!A:G", cfg.SheetName)
	if _, err := e.sheetsService.Spreadsheets.Values.Clear(
		cfg.SheetID, clearRange, &sheets.ClearValuesRequest{},
	).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}

	updateRange := fmt.Sprintf("%s!A1", cfg.SheetName)
	_, err = e.sheetsService.Spreadsheets.Values.Update(
		cfg.SheetID, updateRange, &sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Do()
	if err != nil {
		return fmt.Errorf("failed to update sheet: %w", err)
	}

	logger.Info.Printf("Exported %d rows to sheet %s", len(values), cfg.SheetID)
	return nil
}
