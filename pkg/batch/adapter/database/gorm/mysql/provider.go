// Package mysql registers the MySQL dialector with the gorm adapter.
package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/postchunk/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm"
)

// init registers the MySQL dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Host == "" || cfg.Database == "" {
			return nil, fmt.Errorf("mysql connection requires host and database")
		}
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN for go-sql-driver/mysql.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dc := mysqldriver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Params = map[string]string{"charset": "utf8mb4"}
	if c.Timeout > 0 {
		dc.Timeout = time.Duration(c.Timeout) * time.Second
	}
	return dc.FormatDSN()
}
