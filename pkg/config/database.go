// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "fmt"

// isSQLite covers both accepted spellings of the driver name.
func isSQLite(driver string) bool {
	return driver == "sqlite" || driver == "sqlite3"
}

// DatabaseConfig describes one SQL connection the storage backends can
// reference by name: PostgreSQL, MySQL, or SQLite.
type DatabaseConfig struct {
	// Driver is "postgres", "mysql" or "sqlite".
	Driver string `yaml:"driver"`

	// Host is the server hostname. Not used for SQLite.
	Host string `yaml:"host,omitempty"`

	// Port is the server port. Not used for SQLite.
	Port int `yaml:"port,omitempty"`

	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database"`

	// Username authenticates the connection. Not used for SQLite.
	Username string `yaml:"username,omitempty"`

	// Password authenticates the connection. Not used for SQLite.
	Password string `yaml:"password,omitempty"`

	// SSLMode is PostgreSQL's sslmode parameter.
	SSLMode string `yaml:"ssl_mode,omitempty"`

	// MaxConns caps open connections (default 25).
	MaxConns int `yaml:"max_conns,omitempty"`

	// MaxIdle caps idle connections (default 5).
	MaxIdle int `yaml:"max_idle,omitempty"`
}

// SetDefaults applies default values, including each driver's
// conventional port.
func (c *DatabaseConfig) SetDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}

	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}

	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// Validate checks the configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if !isSQLite(c.Driver) && c.Driver != "postgres" && c.Driver != "mysql" {
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if !isSQLite(c.Driver) && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns must be non-negative")
	}
	if c.MaxIdle < 0 {
		return fmt.Errorf("max_idle must be non-negative")
	}
	return nil
}

// DSN builds the driver's connection string. Credentials appear only
// when configured.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s", c.Host, c.Port, c.Database)
		if c.Username != "" {
			dsn += fmt.Sprintf(" user=%s", c.Username)
		}
		if c.Password != "" {
			dsn += fmt.Sprintf(" password=%s", c.Password)
		}
		if c.SSLMode != "" {
			dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
		}
		return dsn

	case "mysql":
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
				c.Username, c.Password, c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("tcp(%s:%d)/%s", c.Host, c.Port, c.Database)

	case "sqlite", "sqlite3":
		return c.Database

	default:
		return ""
	}
}

// DriverName is the name sql.Open expects: the go-sqlite3 driver
// registers as "sqlite3".
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect is the normalized name query builders switch on: always
// "sqlite", never "sqlite3".
func (c *DatabaseConfig) Dialect() string {
	if c.Driver == "sqlite3" {
		return "sqlite"
	}
	return c.Driver
}
