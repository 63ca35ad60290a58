package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSourceKey places an uploaded dataset file under sources/<dataset>/.
func BuildSourceKey(dataset, filename string) (string, error) {
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	if err := validatePathComponent(filename, "filename"); err != nil {
		return "", err
	}
	return path.Join("sources", dataset, filename), nil
}

// BuildExportKey names a parquet export of one billing table, partitioned by
// export date so repeated exports never overwrite each other.
func BuildExportKey(dataset, tableName string, exportedAt time.Time, sequence int) (string, error) {
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}

	ts := exportedAt.UTC()
	return path.Join(
		"exports",
		dataset,
		tableName,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("part-%05d.parquet", sequence),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
