package sanctions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"repdig-scraper/lib/scrapers/repdig"
)

const (
	DataFile     = "data.json"
	FailuresFile = "failed_downloads.json"
)

// Failure is a record whose document could not be downloaded.
type Failure struct {
	Doc   repdig.Record `json:"doc"`
	Error string        `json:"error"`
}

// Progress is everything collected so far, it only ever grows.
type Progress struct {
	Records  []repdig.Record
	Failures []Failure
}

func writeJSON(path string, value any) error {
	buff, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	err = os.WriteFile(tmp, buff, 0666)
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Save overwrites the snapshot in `dir`. The failures file is only written
// once there is at least one failure.
func (p Progress) Save(dir string) error {
	records := p.Records
	if records == nil {
		records = []repdig.Record{}
	}
	err := writeJSON(filepath.Join(dir, DataFile), records)
	if err != nil {
		return fmt.Errorf("save %s: %w", DataFile, err)
	}
	if len(p.Failures) == 0 {
		return nil
	}
	err = writeJSON(filepath.Join(dir, FailuresFile), p.Failures)
	if err != nil {
		return fmt.Errorf("save %s: %w", FailuresFile, err)
	}
	return nil
}

// LoadProgress reads the snapshot saved in `dir`, missing files read as empty.
func LoadProgress(dir string) (Progress, error) {
	var progress Progress

	buff, err := os.ReadFile(filepath.Join(dir, DataFile))
	if err != nil && !os.IsNotExist(err) {
		return Progress{}, err
	}
	if err == nil {
		err = json.Unmarshal(buff, &progress.Records)
		if err != nil {
			return Progress{}, fmt.Errorf("parse %s: %w", DataFile, err)
		}
	}

	buff, err = os.ReadFile(filepath.Join(dir, FailuresFile))
	if err != nil && !os.IsNotExist(err) {
		return Progress{}, err
	}
	if err == nil {
		err = json.Unmarshal(buff, &progress.Failures)
		if err != nil {
			return Progress{}, fmt.Errorf("parse %s: %w", FailuresFile, err)
		}
	}

	return progress, nil
}
