// Package di contains dependency injection tokens for the gas context.
package di

import (
	"github.com/fd1az/mordor-monitor/business/gas/app"
	"github.com/fd1az/mordor-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Oracle = di.NewToken[*app.Oracle]("gas.Oracle")
)

func GetOracle(c di.ServiceRegistry) *app.Oracle {
	return di.GetToken(c, Oracle)
}
