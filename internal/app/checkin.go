package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/checkin"
)

// CheckinResult reports what happened to one task during a submit run.
type CheckinResult struct {
	Task   string
	Status string
	Err    error
}

// SubmitCheckins signs every pending task of the account using its
// saved session. It never logs in by itself: a fresh password or QR
// login has to happen first. locationName overrides the account's
// stored location when non-empty.
func (s *Service) SubmitCheckins(ctx context.Context, studentID, locationName string) ([]CheckinResult, error) {
	account, err := s.Store.GetCheckinAccount(studentID)
	if err != nil {
		return nil, err
	}

	client, err := s.CheckinClient()
	if err != nil {
		return nil, err
	}
	restored, err := client.RestoreSession(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !restored {
		return nil, fmt.Errorf("no saved check-in session for %s", studentID)
	}

	if locationName == "" && account != nil {
		locationName = account.Location
	}
	loc := checkin.LocationByName(locationName)

	tasks, err := client.ListTasks(ctx, checkin.TaskPending)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	results := make([]CheckinResult, 0, len(tasks))
	for _, task := range tasks {
		record, err := client.FetchTaskRecord(ctx, task.ID)
		if err != nil {
			results = append(results, CheckinResult{Task: task.Name, Status: "failed", Err: err})
			continue
		}
		if record == nil {
			results = append(results, CheckinResult{Task: task.Name, Status: "not assigned"})
			continue
		}
		if record.Signed == 1 {
			results = append(results, CheckinResult{Task: task.Name, Status: "already signed"})
			continue
		}

		if err := client.SubmitLocation(ctx, record.ID, loc, now); err != nil {
			results = append(results, CheckinResult{Task: task.Name, Status: "failed", Err: err})
			continue
		}
		results = append(results, CheckinResult{Task: task.Name, Status: "signed"})

		if account != nil {
			account.LastCheckinTime = now.Format("2006-01-02 15:04:05")
			account.LastCheckinStatus = "ok"
			if err := s.Store.UpsertCheckinAccount(account); err != nil {
				logger.Error.Printf("Failed to record checkin result for %s: %v", studentID, err)
			}
		}
	}
	return results, nil
}
