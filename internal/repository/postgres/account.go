package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/metrics"
)

const accountColumns = `id, email, license_key, tier, status, quota_usage, quota_limit,
	password_hash, identity_provider, identity_subject, payment_customer_id, avatar_url,
	trial_started_at, last_login_at, last_validated_at, created_at, updated_at, billing_event_id`

// AccountRepository implements account.Repository
type AccountRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB, dialect Dialect) account.Repository {
	return &AccountRepository{db: db, dialect: dialect}
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	defer metrics.RecordDBQuery("insert", "accounts", time.Now())

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := r.dialect.Rebind(`
		INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.LicenseKey, string(a.Tier), string(a.Status), a.QuotaUsage, a.QuotaLimit,
		nullString(a.PasswordHash), nullString(a.IdentityProvider), nullString(a.IdentitySubject),
		nullString(a.PaymentCustomerID), nullString(a.AvatarURL),
		nullUnix(a.TrialStartedAt), nullUnix(a.LastLoginAt), nullUnix(a.LastValidatedAt),
		now.Unix(), now.Unix(), nullString(a.BillingEventID),
	)
	if isUniqueViolation(err) {
		return errors.Conflict("An account with this email already exists")
	}
	if err != nil {
		return errors.DatabaseError("Failed to create account", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.getOne(ctx, "email = ?", strings.ToLower(email))
}

// GetByLicenseKey retrieves an account by its current license key
func (r *AccountRepository) GetByLicenseKey(ctx context.Context, licenseKey string) (*account.Account, error) {
	return r.getOne(ctx, "license_key = ?", licenseKey)
}

// GetByIdentity retrieves an account by external identity
func (r *AccountRepository) GetByIdentity(ctx context.Context, provider, subject string) (*account.Account, error) {
	return r.getOne(ctx, "identity_provider = ? AND identity_subject = ?", provider, subject)
}

// GetByPaymentCustomer retrieves an account by payment customer id
func (r *AccountRepository) GetByPaymentCustomer(ctx context.Context, customerID string) (*account.Account, error) {
	return r.getOne(ctx, "payment_customer_id = ?", customerID)
}

// GetByBillingEvent retrieves the account a billing event last changed
func (r *AccountRepository) GetByBillingEvent(ctx context.Context, eventID string) (*account.Account, error) {
	if eventID == "" {
		return nil, errors.NotFound("Account")
	}
	return r.getOne(ctx, "billing_event_id = ?", eventID)
}

func (r *AccountRepository) getOne(ctx context.Context, where string, args ...interface{}) (*account.Account, error) {
	defer metrics.RecordDBQuery("select", "accounts", time.Now())

	query := r.dialect.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE ` + where)

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("Account")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get account", err)
	}
	return a, nil
}

// Update updates profile fields of an account
func (r *AccountRepository) Update(ctx context.Context, a *account.Account) error {
	defer metrics.RecordDBQuery("update", "accounts", time.Now())

	a.UpdatedAt = time.Now()

	query := r.dialect.Rebind(`
		UPDATE accounts
		SET password_hash = ?, identity_provider = ?, identity_subject = ?, avatar_url = ?,
			last_login_at = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		nullString(a.PasswordHash), nullString(a.IdentityProvider), nullString(a.IdentitySubject),
		nullString(a.AvatarURL), nullUnix(a.LastLoginAt), a.UpdatedAt.Unix(), a.ID,
	)
	if isUniqueViolation(err) {
		return errors.Conflict("Identity is already linked to another account")
	}
	if err != nil {
		return errors.DatabaseError("Failed to update account", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFound("Account")
	}
	return nil
}

// TouchValidated records the last validation time
func (r *AccountRepository) TouchValidated(ctx context.Context, id string, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE accounts SET last_validated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, at.Unix(), id); err != nil {
		return errors.DatabaseError("Failed to update last validation", err)
	}
	return nil
}

// ConsumeTrialQuota increments trial usage in a single conditional statement
// so concurrent callers can never push usage past the limit.
func (r *AccountRepository) ConsumeTrialQuota(ctx context.Context, licenseKey string) (int, int, bool, error) {
	defer metrics.RecordDBQuery("consume", "accounts", time.Now())

	query := r.dialect.Rebind(`
		UPDATE accounts
		SET quota_usage = quota_usage + 1, updated_at = ?
		WHERE license_key = ? AND status = ? AND quota_usage < quota_limit
		RETURNING quota_usage, quota_limit
	`)

	var usage, limit int
	err := r.db.QueryRowContext(ctx, query, nowUnix(), licenseKey, string(account.StatusTrial)).Scan(&usage, &limit)
	if err == nil {
		return usage, limit, true, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, errors.DatabaseError("Failed to consume quota", err)
	}

	// Denied: report the counters as they stand.
	err = r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT quota_usage, quota_limit FROM accounts WHERE license_key = ?`),
		licenseKey,
	).Scan(&usage, &limit)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, errors.NotFound("License")
	}
	if err != nil {
		return 0, 0, false, errors.DatabaseError("Failed to read quota", err)
	}
	return usage, limit, false, nil
}

// IncrementUsage counts a project for a paid key
func (r *AccountRepository) IncrementUsage(ctx context.Context, licenseKey string) (int, bool, error) {
	defer metrics.RecordDBQuery("consume", "accounts", time.Now())

	query := r.dialect.Rebind(`
		UPDATE accounts
		SET quota_usage = quota_usage + 1, updated_at = ?
		WHERE license_key = ? AND status IN (?, ?)
		RETURNING quota_usage
	`)

	var usage int
	err := r.db.QueryRowContext(ctx, query, nowUnix(), licenseKey,
		string(account.StatusFreeActive), string(account.StatusProActive),
	).Scan(&usage)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.DatabaseError("Failed to record usage", err)
	}
	return usage, true, nil
}

// RotateLicense swaps the license key with a compare-and-set on the old key
func (r *AccountRepository) RotateLicense(ctx context.Context, id, oldKey string, change account.Upgrade) (bool, error) {
	defer metrics.RecordDBQuery("rotate", "accounts", time.Now())

	query := r.dialect.Rebind(`
		UPDATE accounts
		SET license_key = ?, tier = ?, status = ?, quota_limit = ?,
			payment_customer_id = COALESCE(?, payment_customer_id), billing_event_id = ?, updated_at = ?
		WHERE id = ? AND license_key = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		change.NewKey, string(change.Tier), string(change.Status), account.UnlimitedQuota,
		nullString(change.PaymentCustomerID), nullString(change.EventID), nowUnix(), id, oldKey,
	)
	if isUniqueViolation(err) {
		return false, errors.Conflict("Payment customer is linked to another account")
	}
	if err != nil {
		return false, errors.DatabaseError("Failed to rotate license", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to rotate license", err)
	}
	return n == 1, nil
}

// TransitionStatus moves an account between statuses
func (r *AccountRepository) TransitionStatus(ctx context.Context, id string, from []account.Status, to account.Status) (bool, error) {
	defer metrics.RecordDBQuery("update", "accounts", time.Now())

	query := `UPDATE accounts SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`
	args := []interface{}{string(to), nowUnix(), id, string(to)}
	if len(from) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(from)-1) + `)`
		for _, s := range from {
			args = append(args, string(s))
		}
	}

	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return false, errors.DatabaseError("Failed to update account status", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to update account status", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var a account.Account
	var tier, status string
	var passwordHash, identityProvider, identitySubject, customerID, avatarURL, billingEvent sql.NullString
	var trialStarted, lastLogin, lastValidated sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&a.ID, &a.Email, &a.LicenseKey, &tier, &status, &a.QuotaUsage, &a.QuotaLimit,
		&passwordHash, &identityProvider, &identitySubject, &customerID, &avatarURL,
		&trialStarted, &lastLogin, &lastValidated, &createdAt, &updatedAt, &billingEvent,
	)
	if err != nil {
		return nil, err
	}

	a.Tier = account.Tier(tier)
	a.Status = account.Status(status)
	a.PasswordHash = passwordHash.String
	a.IdentityProvider = identityProvider.String
	a.IdentitySubject = identitySubject.String
	a.PaymentCustomerID = customerID.String
	a.AvatarURL = avatarURL.String
	a.BillingEventID = billingEvent.String
	a.TrialStartedAt = timePtr(trialStarted)
	a.LastLoginAt = timePtr(lastLogin)
	a.LastValidatedAt = timePtr(lastValidated)
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)

	return &a, nil
}
