package bankdemo

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/kuitang/parabank-e2e/internal/errs"
)

// SQLiteDriverName is the SQLCipher driver with foreign keys enforced per connection.
const SQLiteDriverName = "sqlite3_parabank"

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if _, err := conn.Exec("PRAGMA foreign_keys = ON", nil); err != nil {
				return fmt.Errorf("enable foreign keys: %w", err)
			}
			return nil
		},
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	street        TEXT NOT NULL,
	city          TEXT NOT NULL,
	state         TEXT NOT NULL,
	zip_code      TEXT NOT NULL,
	phone         TEXT NOT NULL DEFAULT '',
	ssn           TEXT NOT NULL,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS accounts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id   INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	type          TEXT NOT NULL,
	balance_cents INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	created_at  INTEGER NOT NULL
);
`

// Account numbers start here after a reset, like the stock data set.
const (
	firstCustomerID = 12212
	firstAccountID  = 12345

	// OpeningBalanceCents is what a freshly registered customer's checking account holds.
	OpeningBalanceCents = 51550
)

// Store errors
var (
	ErrUsernameTaken      = errors.New("bankdemo: username already exists")
	ErrInvalidCredentials = errors.New("bankdemo: invalid credentials")
	ErrNoSession          = errors.New("bankdemo: no session")
)

// Customer is a registered bank customer.
type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Street    string
	City      string
	State     string
	ZipCode   string
	Phone     string
	SSN       string
	Username  string
}

// FullName is the name shown in the welcome panel.
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Account is one of a customer's accounts.
type Account struct {
	ID           int64
	CustomerID   int64
	Type         string
	BalanceCents int64
}

// Balance formats the balance as dollars.
func (a Account) Balance() string {
	return formatCents(a.BalanceCents)
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// StoreConfig configures Open.
type StoreConfig struct {
	// Path is the database file; empty keeps the database in memory.
	Path string
	// Key is the 32-byte SQLCipher key; a random key is used when nil.
	Key []byte
	// BcryptCost hashes passwords; out-of-range values fall back to bcrypt.DefaultCost.
	BcryptCost int
}

// Store holds customers, accounts and login sessions in one SQLCipher database.
type Store struct {
	db   *sql.DB
	cost int
	now  func() time.Time
}

// Open opens (creating if needed) the encrypted database and applies the schema.
func Open(ctx context.Context, cfg StoreConfig) (*Store, error) {
	key := cfg.Key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate database key: %w", err)
		}
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("database key must be exactly 32 bytes, got %d", len(key))
	}
	keyHex := hex.EncodeToString(key)

	var dsn string
	if cfg.Path == "" {
		dsn = fmt.Sprintf("file:parabank-%s?mode=memory&cache=shared&_pragma_key=x'%s'&_pragma_cipher_page_size=4096", uuid.NewString(), keyHex)
	} else {
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000", cfg.Path, keyHex)
	}

	db, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open bank database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Reading the schema table fails when the key is wrong.
	var tables int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify bank database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize bank schema: %w", err)
	}

	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{db: db, cost: cost, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewCustomer is the registration input.
type NewCustomer struct {
	Customer
	Password string
}

// Clean removes every customer, account and session.
func (s *Store) Clean(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return cleanTx(ctx, tx)
	})
}

func cleanTx(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		"DELETE FROM sessions",
		"DELETE FROM accounts",
		"DELETE FROM customers",
		"DELETE FROM sqlite_sequence WHERE name IN ('customers', 'accounts')",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sqlite_sequence (name, seq) VALUES ('customers', ?), ('accounts', ?)",
		firstCustomerID-1, firstAccountID-1,
	); err != nil {
		return fmt.Errorf("reset sequences: %w", err)
	}
	return nil
}

// Initialize cleans the database and seeds the stock customer john/demo in
// one transaction. On failure the previous contents are kept.
func (s *Store) Initialize(ctx context.Context) error {
	john := NewCustomer{
		Customer: Customer{
			FirstName: "John",
			LastName:  "Smith",
			Street:    "1431 Main St",
			City:      "Beverly Hills",
			State:     "CA",
			ZipCode:   "90210",
			Phone:     "310-447-4121",
			SSN:       "622-11-9999",
			Username:  "john",
		},
		Password: "demo",
	}
	hash, err := s.hash(john.Password)
	if err != nil {
		return fmt.Errorf("seed john: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := cleanTx(ctx, tx); err != nil {
			return err
		}
		c, err := s.insertCustomer(ctx, tx, john.Customer, hash)
		if err != nil {
			return fmt.Errorf("seed john: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO accounts (customer_id, type, balance_cents) VALUES (?, 'SAVINGS', ?)",
			c.ID, 100000,
		); err != nil {
			return fmt.Errorf("seed john savings: %w", err)
		}
		return nil
	})
}

// CreateCustomer stores a customer with a hashed password and opens a
// checking account holding OpeningBalanceCents.
func (s *Store) CreateCustomer(ctx context.Context, nc NewCustomer) (Customer, error) {
	hash, err := s.hash(nc.Password)
	if err != nil {
		return Customer{}, err
	}
	var c Customer
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		c, err = s.insertCustomer(ctx, tx, nc.Customer, hash)
		return err
	})
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Store) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// insertCustomer adds c and its checking account inside tx.
func (s *Store) insertCustomer(ctx context.Context, tx *sql.Tx, c Customer, hash string) (Customer, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO customers
		(first_name, last_name, street, city, state, zip_code, phone, ssn, username, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FirstName, c.LastName, c.Street, c.City, c.State, c.ZipCode, c.Phone, c.SSN,
		c.Username, hash, s.now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Customer{}, ErrUsernameTaken
		}
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return Customer{}, fmt.Errorf("customer id: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO accounts (customer_id, type, balance_cents) VALUES (?, 'CHECKING', ?)",
		c.ID, OpeningBalanceCents,
	); err != nil {
		return Customer{}, fmt.Errorf("open checking account: %w", err)
	}
	return c, nil
}

// UsernameExists reports whether username is registered.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers WHERE username = ?", username).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup username: %w", err)
	}
	return n > 0, nil
}

// CustomerCount returns the number of registered customers.
func (s *Store) CustomerCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

// Authenticate checks credentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (Customer, error) {
	c, hash, err := s.customerBy(ctx, "username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrInvalidCredentials
	}
	if err != nil {
		return Customer{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Customer{}, ErrInvalidCredentials
	}
	return c, nil
}

// CreateSession starts a login session and returns its id.
func (s *Store) CreateSession(ctx context.Context, customerID int64) (string, error) {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, customer_id, created_at) VALUES (?, ?, ?)",
		id, customerID, s.now().Unix(),
	); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

// SessionCustomer returns the customer logged in under sessionID.
func (s *Store) SessionCustomer(ctx context.Context, sessionID string) (Customer, error) {
	if sessionID == "" {
		return Customer{}, ErrNoSession
	}
	c, _, err := s.customerBy(ctx, "id = (SELECT customer_id FROM sessions WHERE id = ?)", sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrNoSession
	}
	return c, err
}

// DeleteSession ends a login session. Unknown ids are ignored.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Accounts lists a customer's accounts by number.
func (s *Store) Accounts(ctx context.Context, customerID int64) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, customer_id, type, balance_cents FROM accounts WHERE customer_id = ? ORDER BY id",
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Type, &a.BalanceCents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) customerBy(ctx context.Context, where string, arg any) (Customer, string, error) {
	var c Customer
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT id, first_name, last_name, street, city, state, zip_code,
		phone, ssn, username, password_hash FROM customers WHERE `+where, arg).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Street, &c.City, &c.State, &c.ZipCode,
		&c.Phone, &c.SSN, &c.Username, &hash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, "", err
		}
		return Customer{}, "", errs.Wrap(errs.Internal, "load customer", err)
	}
	return c, hash, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
