package database

import (
	"errors"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
)

// Engine identifies the database backend of a Descriptor.
type Engine string

const (
	EngineSQLite     Engine = "sqlite"
	EnginePostgreSQL Engine = "postgresql"
	EngineMySQL      Engine = "mysql"
	EngineRedshift   Engine = "redshift"
)

// MemoryName is the sqlite database name for an in-memory database.
const MemoryName = ":memory:"

const urlKey = "DATABASE_URL"

var schemes = map[string]Engine{
	"sqlite":     EngineSQLite,
	"postgres":   EnginePostgreSQL,
	"postgresql": EnginePostgreSQL,
	"pgsql":      EnginePostgreSQL,
	"postgis":    EnginePostgreSQL,
	"timescale":  EnginePostgreSQL,
	"mysql":      EngineMySQL,
	"mysql2":     EngineMySQL,
	"mysqlgis":   EngineMySQL,
	"redshift":   EngineRedshift,
}

var defaultPorts = map[Engine]int{
	EnginePostgreSQL: 5432,
	EngineMySQL:      3306,
	EngineRedshift:   5439,
}

// Descriptor is the structured form of a database connection target.
type Descriptor struct {
	Engine   Engine            `yaml:"engine"`
	Name     string            `yaml:"name"`
	User     string            `yaml:"user,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Host     string            `yaml:"host,omitempty"`
	Port     int               `yaml:"port,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// SQLiteURL returns the default sqlite URL for a file inside dir.
func SQLiteURL(dir, file string) string {
	return "sqlite:///" + strings.TrimSuffix(filepath.ToSlash(dir), "/") + "/" + file
}

// Parse converts a database URL into a Descriptor. Failures are reported as
// *config.ConfigurationError and never echo the password.
func Parse(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, &config.ConfigurationError{Key: urlKey, Reason: "empty URL"}
	}

	// url.Parse rejects ":memory:" as a host with an invalid port.
	if raw == "sqlite://" || raw == "sqlite://"+MemoryName {
		return Descriptor{Engine: EngineSQLite, Name: MemoryName}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return Descriptor{}, &config.ConfigurationError{Key: urlKey, Reason: "malformed URL", Err: err}
	}

	engine, ok := schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return Descriptor{}, &config.ConfigurationError{
			Key:    urlKey,
			Value:  u.Redacted(),
			Reason: "unsupported scheme " + strconv.Quote(u.Scheme),
		}
	}

	desc := Descriptor{
		Engine: engine,
		Name:   strings.TrimPrefix(u.Path, "/"),
	}

	if engine == EngineSQLite {
		if desc.Name == "" {
			desc.Name = MemoryName
		}
		desc.Options = queryOptions(u.Query())
		return desc, nil
	}

	desc.Host = u.Hostname()
	if u.User != nil {
		desc.User = u.User.Username()
		desc.Password, _ = u.User.Password()
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Descriptor{}, &config.ConfigurationError{
				Key:    urlKey,
				Value:  u.Redacted(),
				Reason: "port out of range",
				Err:    err,
			}
		}
		desc.Port = port
	}
	desc.Options = queryOptions(u.Query())

	return desc, nil
}

// URL renders the descriptor back to URL form with the password masked.
func (d Descriptor) URL() string {
	if d.Engine == EngineSQLite {
		if d.Name == MemoryName {
			return "sqlite://" + MemoryName
		}
		return "sqlite:///" + filepath.ToSlash(d.Name)
	}
	u := d.url(string(d.Engine))
	return u.Redacted()
}

func (d Descriptor) url(scheme string) *url.URL {
	u := &url.URL{
		Scheme: scheme,
		Host:   d.Host,
		Path:   "/" + d.Name,
	}
	port := d.Port
	if port == 0 {
		port = defaultPorts[d.Engine]
	}
	if d.Host != "" && port != 0 {
		u.Host = d.Host + ":" + strconv.Itoa(port)
	}
	if d.User != "" || d.Password != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	if len(d.Options) > 0 {
		u.RawQuery = encodeOptions(d.Options)
	}
	return u
}

func queryOptions(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		out[key] = vals[0]
	}
	return out
}

func encodeOptions(opts map[string]string) string {
	values := url.Values{}
	for k, v := range opts {
		values.Set(k, v)
	}
	return values.Encode()
}
