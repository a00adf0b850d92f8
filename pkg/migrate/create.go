package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var slugInvalidRe = regexp.MustCompile(`[^a-z0-9]+`)

// sqlTemplate is the skeleton for new migrations; both directions are required.
var sqlTemplate = template.Must(template.New("revo.sql-migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}} ({{.Version}})
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{.CamelName}}
-- +goose StatementEnd
`))

// CreateSQLMigration writes <dir>/<UTC timestamp>_<slug>.sql through goose and
// returns the new file's path. Names are reduced to [a-z0-9_] so the result
// passes ValidateDir.
func CreateSQLMigration(dir, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("dir is required")
	}
	slug := strings.Trim(slugInvalidRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	before, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, slug, "sql"); err != nil {
		return "", err
	}
	after, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	for path := range after {
		if _, existed := before[path]; !existed && sqlFileRe.MatchString(filepath.Base(path)) {
			return path, nil
		}
	}
	return "", fmt.Errorf("goose did not create a migration for %q in %s", slug, dir)
}

func sqlFiles(dir string) (map[string]struct{}, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		set[m] = struct{}{}
	}
	return set, nil
}
