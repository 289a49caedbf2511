package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

const (
	DefaultSQLServerPort = "1433"
	DefaultMySQLPort     = "3306"
	DefaultSSHPort       = "22"
)

// DB is one side of the migration, source or destination.
type DB struct {
	Type     string
	Host     string
	Port     string
	User     string
	Password string
	Database string

	UseSSH      bool
	SSHHost     string
	SSHPort     string
	SSHUser     string
	SSHPassword string
}

type Config struct {
	AppPort string

	MappingFile  string
	LogDir       string
	LogLevel     string
	DBLogLevel   string
	LegacySchema string
	EmailDomain  string

	Source DB
	Dest   DB

	RedisAddr    string
	RedisPass    string
	RedisDB      int
	IdempTTLSecs int
	RunLockTTL   time.Duration

	BillsOfficerID int64
	BillsProductID int64
	BillsBranchID  int64
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getbool(k string, d bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "y", "yes", "true", "1":
		return true
	case "n", "no", "false", "0":
		return false
	}
	return d
}

func loadDB(prefix, defaultType string) DB {
	d := DB{
		Type:        strings.ToLower(getenv(prefix+"DB_TYPE", defaultType)),
		Host:        getenv(prefix+"HOST", ""),
		User:        getenv(prefix+"USER", ""),
		Password:    getenv(prefix+"PASSWORD", ""),
		Database:    getenv(prefix+"DATABASE", ""),
		UseSSH:      getbool(prefix+"USE_SSH", true),
		SSHHost:     getenv(prefix+"SSH_HOST", ""),
		SSHPort:     getenv(prefix+"SSH_PORT", DefaultSSHPort),
		SSHUser:     getenv(prefix+"SSH_USER", ""),
		SSHPassword: getenv(prefix+"SSH_PASSWORD", ""),
	}
	port := DefaultMySQLPort
	if d.Type == "sqlserver" {
		port = DefaultSQLServerPort
	}
	d.Port = getenv(prefix+"PORT", port)
	return d
}

// Load reads .env when present, then the environment.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppPort:      getenv("APP_PORT", "8080"),
		MappingFile:  getenv("MAPPING_FILE", "mappings.csv"),
		LogDir:       getenv("LOG_DIR", "logs"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		DBLogLevel:   getenv("DB_LOG_LEVEL", "warn"),
		LegacySchema: getenv("LEGACY_SCHEMA", "ilts"),
		EmailDomain:  getenv("EMAIL_DOMAIN", "sandah.org"),

		Source: loadDB("SOURCE_", "sqlserver"),
		Dest:   loadDB("DEST_", "mysql"),

		RedisAddr:    getenv("REDIS_ADDR", ""),
		RedisPass:    getenv("REDIS_PASSWORD", ""),
		RedisDB:      getint("REDIS_DB", 0),
		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),
		RunLockTTL:   time.Duration(getint("RUN_LOCK_TTL_SECONDS", 3600)) * time.Second,

		BillsOfficerID: int64(getint("BILLS_OFFICER_ID", 57368)),
		BillsProductID: int64(getint("BILLS_PRODUCT_ID", 17)),
		BillsBranchID:  int64(getint("BILLS_BRANCH_ID", 1)),
	}
	return c
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.MappingFile == "" {
		errs = multierror.Append(errs, errors.New("missing MAPPING_FILE"))
	}
	if c.AppPort == "" {
		errs = multierror.Append(errs, errors.New("missing APP_PORT"))
	}
	if err := c.Source.validate("SOURCE"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.Dest.validate("DEST"); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func (d DB) validate(name string) error {
	switch d.Type {
	case "mysql", "sqlserver", "sqlite":
	default:
		return fmt.Errorf("unsupported %s_DB_TYPE %q (use mysql or sqlserver)", name, d.Type)
	}
	if d.Type == "sqlite" {
		if d.Database == "" {
			return fmt.Errorf("missing %s_DATABASE", name)
		}
		return nil
	}
	if d.Host == "" || d.Database == "" || d.User == "" {
		return fmt.Errorf("missing %s database config (%s_HOST/DATABASE/USER)", name, name)
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", d.Port); err != nil {
		return fmt.Errorf("invalid %s_PORT %q: %w", name, d.Port, err)
	}
	if d.UseSSH && (d.SSHHost == "" || d.SSHUser == "") {
		return fmt.Errorf("missing %s SSH config (%s_SSH_HOST/SSH_USER)", name, name)
	}
	return nil
}

// Addr is host:port of the database as seen from this machine.
func (d DB) Addr() string { return net.JoinHostPort(d.Host, d.Port) }

func (d DB) SSHAddr() string { return net.JoinHostPort(d.SSHHost, d.SSHPort) }

// WithAddr returns a copy pointing at addr, typically a local tunnel end.
func (d DB) WithAddr(addr string) DB {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return d
	}
	d.Host, d.Port = host, port
	return d
}

func (d DB) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		d.User, d.Password, d.Addr(), d.Database)
}

func (d DB) SQLServerDSN() string {
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Addr(),
		RawQuery: url.Values{"database": {d.Database}}.Encode(),
	}
	return u.String()
}

// DSN picks the connection string for the configured type.
func (d DB) DSN() string {
	switch d.Type {
	case "sqlserver":
		return d.SQLServerDSN()
	case "sqlite":
		return d.Database
	default:
		return d.MySQLDSN()
	}
}
