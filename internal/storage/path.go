package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

const (
	TableDetailsObject  = "table_details.parquet"
	ColumnDetailsObject = "column_details.parquet"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildArchiveKey returns the key an embedded batch file is archived under,
// grouped by data source and UTC run time.
func BuildArchiveKey(sourceType string, runAt time.Time, object string) (string, error) {
	if err := validatePathComponent(sourceType, "source type"); err != nil {
		return "", err
	}
	if object != TableDetailsObject && object != ColumnDetailsObject {
		return "", fmt.Errorf("invalid batch object: %q", object)
	}
	ts := runAt.UTC()
	return path.Join(
		sourceType,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("run=%s", ts.Format("150405.000000000")),
		object,
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
