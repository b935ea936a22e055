// Package sqlite implements store.Store on modernc.org/sqlite. Multi-record
// writes (installment series creation, cascading deletes) run inside one
// transaction, which is stricter than the memory backend; single-record
// updates stay last-writer-wins.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"contas/internal/core"
	"contas/internal/store"
)

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func moneyOf(s string) core.Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}
	}
	return core.NewMoney(d)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Cards

func (r *Repository) CreateCard(ctx context.Context, c core.Card) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (id, workspace_id, name, closing_day, due_day, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.Name, c.ClosingDay, c.DueDay, c.Active)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (r *Repository) GetCard(ctx context.Context, id string) (core.Card, error) {
	var c core.Card
	err := r.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, closing_day, due_day, active FROM cards WHERE id = ?`, id).
		Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.ClosingDay, &c.DueDay, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, core.ErrNotFound
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCards(ctx context.Context, workspaceID string) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, workspace_id, name, closing_day, due_day, active
		 FROM cards WHERE workspace_id = ? ORDER BY name`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.Card
	for rows.Next() {
		var c core.Card
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.ClosingDay, &c.DueDay, &c.Active); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Obligations

const obligationCols = `id, workspace_id, card_id, category_id, description, amount,
	purchase_date, period, is_installment, installment_number, total_installments,
	parent_id, created_at, updated_at`

func scanObligation(sc interface{ Scan(...any) error }) (core.Obligation, error) {
	var (
		o          core.Obligation
		amount     string
		categoryID sql.NullString
		parentID   sql.NullString
	)
	err := sc.Scan(&o.ID, &o.WorkspaceID, &o.CardID, &categoryID, &o.Description, &amount,
		&o.PurchaseDate, &o.Period, &o.IsInstallment, &o.InstallmentNumber, &o.TotalInstallments,
		&parentID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return core.Obligation{}, err
	}
	o.Amount = moneyOf(amount)
	o.CategoryID = categoryID.String
	o.ParentID = parentID.String
	return o, nil
}

func (r *Repository) CreateObligations(ctx context.Context, obs []core.Obligation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, o := range obs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO obligations (id, workspace_id, card_id, category_id, description,
			   amount, purchase_date, period, is_installment, installment_number,
			   total_installments, parent_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.WorkspaceID, o.CardID, nullStr(o.CategoryID), o.Description,
			o.Amount.String(), o.PurchaseDate, o.Period, o.IsInstallment, o.InstallmentNumber,
			o.TotalInstallments, nullStr(o.ParentID), o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert obligation: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repository) GetObligation(ctx context.Context, id string) (core.Obligation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+obligationCols+` FROM obligations WHERE id = ?`, id)
	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Obligation{}, core.ErrNotFound
	}
	if err != nil {
		return core.Obligation{}, fmt.Errorf("get obligation: %w", err)
	}
	return o, nil
}

func (r *Repository) UpdateObligation(ctx context.Context, o core.Obligation) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE obligations SET category_id = ?, description = ?, amount = ?,
		   purchase_date = ?, period = ?, updated_at = ?
		 WHERE id = ?`,
		nullStr(o.CategoryID), o.Description, o.Amount.String(),
		o.PurchaseDate, o.Period, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

func (r *Repository) DeleteObligations(ctx context.Context, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM obligations WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete obligation: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repository) SetParent(ctx context.Context, childIDs []string, parentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range childIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE obligations SET parent_id = ? WHERE id = ?`, parentID, id); err != nil {
			return fmt.Errorf("set parent: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repository) ListChildren(ctx context.Context, parentID string) ([]core.Obligation, error) {
	return r.queryObligations(ctx,
		`SELECT `+obligationCols+` FROM obligations WHERE parent_id = ? ORDER BY installment_number`,
		parentID)
}

func (r *Repository) ListObligations(ctx context.Context, cardID string, period core.Period) ([]core.Obligation, error) {
	return r.queryObligations(ctx,
		`SELECT `+obligationCols+` FROM obligations WHERE card_id = ? AND period = ? ORDER BY purchase_date, id`,
		cardID, period)
}

func (r *Repository) ListInstallmentParents(ctx context.Context, workspaceID string, fromPeriod core.Period) ([]core.Obligation, error) {
	return r.queryObligations(ctx,
		`SELECT `+obligationCols+` FROM obligations
		 WHERE workspace_id = ? AND is_installment = 1 AND parent_id IS NULL AND period >= ?
		 ORDER BY period, purchase_date DESC`,
		workspaceID, fromPeriod)
}

func (r *Repository) queryObligations(ctx context.Context, query string, args ...any) ([]core.Obligation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query obligations: %w", err)
	}
	defer rows.Close()

	var out []core.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Invoices

func scanInvoice(sc interface{ Scan(...any) error }) (core.Invoice, error) {
	var (
		inv    core.Invoice
		total  string
		paidAt sql.NullTime
	)
	err := sc.Scan(&inv.ID, &inv.WorkspaceID, &inv.CardID, &inv.Period, &total,
		&inv.Status, &inv.ClosingDate, &inv.DueDate, &paidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Total = moneyOf(total)
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}
	return inv, nil
}

const invoiceCols = `id, workspace_id, card_id, period, total, status, closing_date,
	due_date, paid_at, created_at, updated_at`

func (r *Repository) GetInvoice(ctx context.Context, cardID string, period core.Period) (core.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE card_id = ? AND period = ?`, cardID, period)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.ErrNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *Repository) GetInvoiceByID(ctx context.Context, id string) (core.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.ErrNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice by id: %w", err)
	}
	return inv, nil
}

func (r *Repository) ListInvoices(ctx context.Context, workspaceID, cardID string) ([]core.Invoice, error) {
	query := `SELECT ` + invoiceCols + ` FROM invoices WHERE workspace_id = ?`
	args := []any{workspaceID}
	if cardID != "" {
		query += ` AND card_id = ?`
		args = append(args, cardID)
	}
	query += ` ORDER BY period DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertInvoice(ctx context.Context, inv core.Invoice) error {
	var paidAt sql.NullTime
	if inv.PaidAt != nil {
		paidAt = sql.NullTime{Time: *inv.PaidAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (id, workspace_id, card_id, period, total, status,
		   closing_date, due_date, paid_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (card_id, period) DO UPDATE SET
		   total = excluded.total,
		   status = excluded.status,
		   paid_at = excluded.paid_at,
		   updated_at = excluded.updated_at`,
		inv.ID, inv.WorkspaceID, inv.CardID, inv.Period, inv.Total.String(), inv.Status,
		inv.ClosingDate, inv.DueDate, paidAt, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert invoice: %w", err)
	}
	return nil
}

// Rules

const ruleCols = `id, workspace_id, category_id, description, amount, type, frequency,
	interval, next_occurrence, end_date, max_occurrences, occurrence_count, active,
	completed, last_executed_at, created_at, updated_at`

func scanRule(sc interface{ Scan(...any) error }) (core.RecurringRule, error) {
	var (
		rule       core.RecurringRule
		amount     string
		categoryID sql.NullString
		next       sql.NullTime
		endDate    sql.NullTime
		lastExec   sql.NullTime
	)
	err := sc.Scan(&rule.ID, &rule.WorkspaceID, &categoryID, &rule.Description, &amount,
		&rule.Type, &rule.Frequency, &rule.Interval, &next, &endDate, &rule.MaxOccurrences,
		&rule.OccurrenceCount, &rule.Active, &rule.Completed, &lastExec,
		&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return core.RecurringRule{}, err
	}
	rule.Amount = moneyOf(amount)
	rule.CategoryID = categoryID.String
	rule.NextOccurrence = next.Time
	rule.EndDate = endDate.Time
	rule.LastExecutedAt = lastExec.Time
	return rule, nil
}

func (r *Repository) CreateRule(ctx context.Context, rule core.RecurringRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_rules (id, workspace_id, category_id, description, amount,
		   type, frequency, interval, next_occurrence, end_date, max_occurrences,
		   occurrence_count, active, completed, last_executed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.WorkspaceID, nullStr(rule.CategoryID), rule.Description, rule.Amount.String(),
		rule.Type, rule.Frequency, rule.Interval, nullTime(rule.NextOccurrence),
		nullTime(rule.EndDate), rule.MaxOccurrences, rule.OccurrenceCount, rule.Active,
		rule.Completed, nullTime(rule.LastExecutedAt), rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (r *Repository) GetRule(ctx context.Context, id string) (core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleCols+` FROM recurring_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *Repository) UpdateRule(ctx context.Context, rule core.RecurringRule) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules SET category_id = ?, description = ?, amount = ?, type = ?,
		   frequency = ?, interval = ?, next_occurrence = ?, end_date = ?,
		   max_occurrences = ?, occurrence_count = ?, active = ?, completed = ?,
		   last_executed_at = ?, updated_at = ?
		 WHERE id = ?`,
		nullStr(rule.CategoryID), rule.Description, rule.Amount.String(), rule.Type,
		rule.Frequency, rule.Interval, nullTime(rule.NextOccurrence), nullTime(rule.EndDate),
		rule.MaxOccurrences, rule.OccurrenceCount, rule.Active, rule.Completed,
		nullTime(rule.LastExecutedAt), rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

func (r *Repository) ListRules(ctx context.Context, workspaceID string) ([]core.RecurringRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleCols+` FROM recurring_rules WHERE workspace_id = ? ORDER BY next_occurrence`,
		workspaceID)
}

func (r *Repository) ListActiveRules(ctx context.Context) ([]core.RecurringRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleCols+` FROM recurring_rules WHERE active = 1 AND completed = 0 ORDER BY next_occurrence`)
}

func (r *Repository) queryRules(ctx context.Context, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Facts

const factCols = `id, workspace_id, category_id, description, amount, type, date, period,
	projected, source, confidence, rule_id, created_at, updated_at`

func scanFact(sc interface{ Scan(...any) error }) (core.Fact, error) {
	var (
		f          core.Fact
		amount     string
		categoryID sql.NullString
		source     sql.NullString
		ruleID     sql.NullString
	)
	err := sc.Scan(&f.ID, &f.WorkspaceID, &categoryID, &f.Description, &amount, &f.Type,
		&f.Date, &f.Period, &f.Projected, &source, &f.Confidence, &ruleID,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return core.Fact{}, err
	}
	f.Amount = moneyOf(amount)
	f.CategoryID = categoryID.String
	f.Source = core.ProjectionSource(source.String)
	f.RuleID = ruleID.String
	return f, nil
}

func (r *Repository) CreateFact(ctx context.Context, f core.Fact) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO facts (id, workspace_id, category_id, description, amount, type,
		   date, period, projected, source, confidence, rule_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.WorkspaceID, nullStr(f.CategoryID), f.Description, f.Amount.String(), f.Type,
		f.Date, f.Period, f.Projected, nullStr(string(f.Source)), f.Confidence,
		nullStr(f.RuleID), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	return nil
}

func (r *Repository) GetFact(ctx context.Context, id string) (core.Fact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+factCols+` FROM facts WHERE id = ?`, id)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Fact{}, core.ErrNotFound
	}
	if err != nil {
		return core.Fact{}, fmt.Errorf("get fact: %w", err)
	}
	return f, nil
}

func (r *Repository) ListFacts(ctx context.Context, workspaceID string, period core.Period) ([]core.Fact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+factCols+` FROM facts WHERE workspace_id = ? AND period = ? ORDER BY date, id`,
		workspaceID, period)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var out []core.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) HasProjection(ctx context.Context, ruleID string, period core.Period) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM facts WHERE rule_id = ? AND period = ? AND projected = 1`,
		ruleID, period).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check projection: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) DeleteProjections(ctx context.Context, workspaceID string, startPeriod, endPeriod core.Period) (int, error) {
	query := `DELETE FROM facts WHERE workspace_id = ? AND projected = 1`
	args := []any{workspaceID}
	if startPeriod != "" {
		query += ` AND period >= ?`
		args = append(args, startPeriod)
	}
	if endPeriod != "" {
		query += ` AND period <= ?`
		args = append(args, endPeriod)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete projections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r *Repository) CountRealFactsByRule(ctx context.Context, ruleID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM facts WHERE rule_id = ? AND projected = 0`, ruleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count real facts: %w", err)
	}
	return n, nil
}
