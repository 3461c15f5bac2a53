package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Storage struct {
	DB *sql.DB
}

func (s *Storage) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS package_scores (
		name TEXT PRIMARY KEY,
		vulnerability_percentage REAL NOT NULL,
		typosquatting INTEGER NOT NULL,
		supply_chain INTEGER NOT NULL,
		code_injection INTEGER NOT NULL,
		credential_harvesting INTEGER NOT NULL,
		checked_at INTEGER NOT NULL
	);`
	_, err := s.DB.ExecContext(ctx, query)
	return err
}

const upsertScoreQuery = `
  INSERT INTO package_scores (name, vulnerability_percentage, typosquatting, supply_chain, code_injection, credential_harvesting, checked_at)
  VALUES (?, ?, ?, ?, ?, ?, ?)
  ON CONFLICT(name)
  DO UPDATE SET
    vulnerability_percentage = excluded.vulnerability_percentage,
    typosquatting = excluded.typosquatting,
    supply_chain = excluded.supply_chain,
    code_injection = excluded.code_injection,
    credential_harvesting = excluded.credential_harvesting,
    checked_at = excluded.checked_at;
`

const selectScoreColumns = `name, vulnerability_percentage, typosquatting, supply_chain, code_injection, credential_harvesting, checked_at`

func scoreArgs(p PackageScore) []any {
	return []any{
		NormalizeName(p.Name),
		p.VulnerabilityPercentage,
		p.Typosquatting,
		p.SupplyChain,
		p.CodeInjection,
		p.CredentialHarvesting,
		p.CheckedAt.Unix(),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScore(row scanner) (PackageScore, error) {
	var (
		p         PackageScore
		checkedAt int64
	)
	err := row.Scan(&p.Name, &p.VulnerabilityPercentage, &p.Typosquatting, &p.SupplyChain,
		&p.CodeInjection, &p.CredentialHarvesting, &checkedAt)
	if err != nil {
		return PackageScore{}, err
	}
	p.CheckedAt = time.Unix(checkedAt, 0).UTC()
	return p, nil
}

// NormalizeName is the cache key for a package; PyPI treats names
// case-insensitively.
func NormalizeName(name string) string {
	return strings.ToLower(name)
}

func (s *Storage) UpsertPackageScores(ctx context.Context, scores []PackageScore) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertScoreQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, score := range scores {
		if _, err := stmt.ExecContext(ctx, scoreArgs(score)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Storage) UpsertPackageScore(ctx context.Context, score PackageScore) error {
	_, err := s.DB.ExecContext(ctx, upsertScoreQuery, scoreArgs(score)...)
	return err
}

func (s *Storage) GetPackageScore(ctx context.Context, name string) (PackageScore, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+selectScoreColumns+` FROM package_scores WHERE name=?`,
		NormalizeName(name),
	)
	return scanScore(row)
}

func (s *Storage) ListPackageScoresFiltered(ctx context.Context, name string, minPercentage *float64) ([]PackageScore, error) {
	query := `
		SELECT ` + selectScoreColumns + `
		FROM package_scores
		WHERE 1=1
	`
	var args []any

	if name != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+NormalizeName(name)+"%")
	}

	if minPercentage != nil {
		query += " AND vulnerability_percentage >= ?"
		args = append(args, *minPercentage)
	}

	query += " ORDER BY name"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []PackageScore
	for rows.Next() {
		p, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *Storage) DeletePackageScore(ctx context.Context, name string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM package_scores WHERE name=?`,
		NormalizeName(name))
	return err
}

// GetFreshScores returns cached scores checked at or after since, keyed by
// normalized name.
func (s *Storage) GetFreshScores(ctx context.Context, names []string, since time.Time) (map[string]PackageScore, error) {
	if len(names) == 0 {
		return map[string]PackageScore{}, nil
	}

	var (
		args         []any
		placeholders []string
	)
	for _, name := range names {
		placeholders = append(placeholders, "?")
		args = append(args, NormalizeName(name))
	}
	args = append(args, since.Unix())

	query := fmt.Sprintf(`
		SELECT %s
		FROM package_scores
		WHERE name IN (%s) AND checked_at >= ?;
	`, selectScoreColumns, strings.Join(placeholders, ", "))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]PackageScore)
	for rows.Next() {
		p, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		result[p.Name] = p
	}

	return result, rows.Err()
}

// PurgeBefore deletes scores checked before cutoff and reports how many
// were removed.
func (s *Storage) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM package_scores WHERE checked_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
