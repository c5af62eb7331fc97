package exporters

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CsvExporter is an exporter that appends notifications to a csv file
type CsvExporter struct {
	CsvPath string
	mu      sync.Mutex
}

// InitCsvExporter initializes a new CsvExporter
func InitCsvExporter(csvPath string) *CsvExporter {
	if csvPath == "" {
		csvPath = os.Getenv("EXPORTER_CSV_PATH")
		if csvPath == "" {
			logrus.Debugf("csv path not provided, notifications will not be exported to csv")
			return nil
		}
	}

	if _, err := os.Stat(csvPath); os.IsNotExist(err) {
		writeHeaders(csvPath)
	}

	return &CsvExporter{
		CsvPath: csvPath,
	}
}

// SendCrashNotification appends a notification row
func (ce *CsvExporter) SendCrashNotification(notification Notification) {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	csvFile, err := os.OpenFile(ce.CsvPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logrus.Errorf("failed to open csv exporter file: %v", err)
		return
	}
	defer csvFile.Close()

	csvWriter := csv.NewWriter(csvFile)
	defer csvWriter.Flush()

	var packageName, userID string
	if notification.Action != nil {
		packageName = notification.Action.PackageName
		userID = fmt.Sprintf("%d", notification.Action.UserID)
	}

	if err := csvWriter.Write([]string{
		notification.ID,
		string(notification.Kind),
		notification.Title,
		packageName,
		userID,
		notification.Timestamp.UTC().Format(time.RFC3339),
		notification.Report(),
	}); err != nil {
		logrus.Errorf("failed to write csv row: %v", err)
	}
}

func writeHeaders(csvPath string) {
	csvFile, err := os.OpenFile(csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logrus.Errorf("failed to initialize csv exporter: %v", err)
		return
	}
	defer csvFile.Close()

	csvWriter := csv.NewWriter(csvFile)
	defer csvWriter.Flush()
	if err := csvWriter.Write([]string{
		"ID",
		"Kind",
		"Title",
		"Package Name",
		"User ID",
		"Timestamp",
		"Report",
	}); err != nil {
		logrus.Errorf("failed to write csv headers: %v", err)
	}
}
